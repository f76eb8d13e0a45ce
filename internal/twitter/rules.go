package twitter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// MaxRuleLength is the longest rule value the filtered stream accepts.
const MaxRuleLength = 512

const rulesPath = "/tweets/search/stream/rules"

// Rule is a filtered stream rule
type Rule struct {
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
	Tag   string `json:"tag,omitempty"`
}

type rulesResponse struct {
	Data   []Rule    `json:"data"`
	Errors []Problem `json:"errors"`
}

type addRulesRequest struct {
	Add []Rule `json:"add"`
}

type deleteRulesRequest struct {
	Delete struct {
		IDs []string `json:"ids"`
	} `json:"delete"`
}

// FilterRules builds "from:a OR from:b" rule values covering every
// username, splitting into several rules so none exceeds MaxRuleLength.
func FilterRules(usernames []string) []string {
	var rules []string
	var current strings.Builder

	for _, name := range usernames {
		if name == "" {
			continue
		}
		clause := "from:" + name
		if current.Len() > 0 && current.Len()+len(" OR ")+len(clause) > MaxRuleLength {
			rules = append(rules, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" OR ")
		}
		current.WriteString(clause)
	}

	if current.Len() > 0 {
		rules = append(rules, current.String())
	}
	return rules
}

// Rules lists the active stream rules
func (c *Client) Rules(ctx context.Context) ([]Rule, error) {
	var resp rulesResponse
	if err := c.do(ctx, http.MethodGet, rulesPath, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return resp.Data, nil
}

// AddFilter subscribes the stream to tweets from the given usernames and
// returns the ids of the created rules.
func (c *Client) AddFilter(ctx context.Context, usernames []string, tag string) ([]string, error) {
	values := FilterRules(usernames)
	if len(values) == 0 {
		return nil, nil
	}

	req := addRulesRequest{}
	for _, v := range values {
		req.Add = append(req.Add, Rule{Value: v, Tag: tag})
	}

	var resp rulesResponse
	if err := c.do(ctx, http.MethodPost, rulesPath, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("add rules: %w", err)
	}
	if len(resp.Errors) > 0 && len(resp.Data) == 0 {
		return nil, fmt.Errorf("add rules: %w", &APIError{Problems: resp.Errors})
	}

	ids := make([]string, 0, len(resp.Data))
	for _, r := range resp.Data {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// DeleteRules removes rules by id
func (c *Client) DeleteRules(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var req deleteRulesRequest
	req.Delete.IDs = ids

	if err := c.do(ctx, http.MethodPost, rulesPath, nil, req, nil); err != nil {
		return fmt.Errorf("delete rules: %w", err)
	}
	return nil
}

// ClearFilters removes every active rule. With a non-empty tag only rules
// carrying that tag are removed.
func (c *Client) ClearFilters(ctx context.Context, tag string) (int, error) {
	rules, err := c.Rules(ctx)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, r := range rules {
		if tag == "" || r.Tag == tag {
			ids = append(ids, r.ID)
		}
	}

	if err := c.DeleteRules(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// SyncFilters replaces the rules carrying tag with rules for usernames.
func (c *Client) SyncFilters(ctx context.Context, usernames []string, tag string) ([]string, error) {
	removed, err := c.ClearFilters(ctx, tag)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("removed stale stream rules", "count", removed, "tag", tag)

	return c.AddFilter(ctx, usernames, tag)
}
