// Package notification composes the outbound emails of the approval
// workflow and the action links embedded in them. Delivery is decoupled:
// composed emails land in the outbox and the dispatch job sends them.
package notification

import (
	"fmt"
	"net/url"
	"strings"

	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/service"
)

// Composer builds approval-request, outcome and digest emails. Action
// links point at the public endpoints, so recipients act straight from
// the mail client without a session.
type Composer struct {
	baseURL string
	tokens  *service.ActionTokenService
}

// NewComposer creates a composer. baseURL is the externally reachable
// root of the service, without a trailing slash.
func NewComposer(tokens *service.ActionTokenService, baseURL string) *Composer {
	return &Composer{tokens: tokens, baseURL: strings.TrimRight(baseURL, "/")}
}

// PlanApprovalRequest mints an approve and a reject token per approver
// and composes one request email each. The returned tokens and emails are
// persisted by the caller inside the transition transaction.
func (c *Composer) PlanApprovalRequest(o *domain.Order, level int, approvers []domain.User) ([]domain.ActionToken, []domain.OutboxEmail, error) {
	var (
		tokens []domain.ActionToken
		emails []domain.OutboxEmail
	)
	for _, approver := range approvers {
		approve, err := c.tokens.Mint(o.ID, approver.ID, "approve")
		if err != nil {
			return nil, nil, err
		}
		reject, err := c.tokens.Mint(o.ID, approver.ID, "reject")
		if err != nil {
			return nil, nil, err
		}
		tokens = append(tokens, approve, reject)

		body := fmt.Sprintf(
			"Hello %s,\n\n"+
				"Premium freight order #%d awaits your approval (level %d).\n\n"+
				"Plant:       %s\n"+
				"Cost:        %s\n"+
				"Description: %s\n\n"+
				"Approve: %s\n"+
				"Reject:  %s\n",
			approver.Name, o.ID, level,
			o.Plant, formatEUR(o.CostEUR), o.Description,
			c.actionLink(approve.Token, "approve", o.ID),
			c.actionLink(reject.Token, "reject", o.ID),
		)
		emails = append(emails, domain.OutboxEmail{
			Recipient: approver.Email,
			Subject:   fmt.Sprintf("Approval required: premium freight order #%d", o.ID),
			Body:      body,
			OrderID:   &o.ID,
		})
	}
	return tokens, emails, nil
}

// PlanOutcome composes the terminal-state email to the order's creator.
func (c *Composer) PlanOutcome(o *domain.Order, creator domain.User, status domain.Status, reason string) []domain.OutboxEmail {
	var subject, body string
	switch status {
	case domain.StatusApproved:
		subject = fmt.Sprintf("Premium freight order #%d approved", o.ID)
		body = fmt.Sprintf(
			"Hello %s,\n\nyour premium freight order #%d (%s, %s) has been fully approved.\n",
			creator.Name, o.ID, o.Plant, formatEUR(o.CostEUR))
	case domain.StatusRejected:
		subject = fmt.Sprintf("Premium freight order #%d rejected", o.ID)
		body = fmt.Sprintf(
			"Hello %s,\n\nyour premium freight order #%d (%s, %s) has been rejected.\n\nReason: %s\n",
			creator.Name, o.ID, o.Plant, formatEUR(o.CostEUR), reason)
	default:
		return nil
	}
	return []domain.OutboxEmail{{
		Recipient: creator.Email,
		Subject:   subject,
		Body:      body,
		OrderID:   &o.ID,
	}}
}

// PlanDigest composes the weekly summary for one approver. The bulk
// approve token covers every listed order; per-order links reuse the same
// token narrowed by order_id.
func (c *Composer) PlanDigest(approver domain.User, rows []OrderSummary, bulk domain.BulkActionToken) domain.OutboxEmail {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n%d premium freight order(s) await your approval:\n\n",
		approver.Name, len(rows))
	for _, r := range rows {
		fmt.Fprintf(&sb, "  #%d  %-6s %12s  %s\n      approve: %s\n",
			r.OrderID, r.Plant, formatEUR(r.CostEUR), r.Description,
			c.bulkLink(bulk.Token, "approve", r.OrderID))
	}
	fmt.Fprintf(&sb, "\nApprove all: %s\n", c.bulkLink(bulk.Token, "approve", 0))

	return domain.OutboxEmail{
		Recipient: approver.Email,
		Subject:   fmt.Sprintf("Weekly digest: %d order(s) awaiting your approval", len(rows)),
		Body:      sb.String(),
	}
}

// OrderSummary is the slice of order data a digest line needs.
type OrderSummary struct {
	OrderID     int64
	Plant       string
	CostEUR     int64
	Description string
}

func (c *Composer) actionLink(token, action string, orderID int64) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("action", action)
	q.Set("order_id", fmt.Sprintf("%d", orderID))
	return fmt.Sprintf("%s/api/v1/actions?%s", c.baseURL, q.Encode())
}

func (c *Composer) bulkLink(token, action string, orderID int64) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("action", action)
	if orderID != 0 {
		q.Set("order_id", fmt.Sprintf("%d", orderID))
	}
	return fmt.Sprintf("%s/api/v1/actions/bulk?%s", c.baseURL, q.Encode())
}

// formatEUR renders a cent amount as a euro string for email bodies.
func formatEUR(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d EUR", sign, cents/100, cents%100)
}
