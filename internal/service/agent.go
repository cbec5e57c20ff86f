package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/metrics"
	"github.com/pmonasterio/vaquita/internal/oracle"
)

// AgentService routes free-text commands through the oracle and executes
// the resulting action. Every outcome the user caused (bad payload,
// missing session, ambiguous item) becomes a reply, not an error; errors
// are reserved for storage failures.
type AgentService struct {
	Provider oracle.Provider
	Sessions *SessionService
	Users    *repository.UserRepo
	Items    *repository.ItemRepo
	Invoices *repository.InvoiceRepo
}

// HandleCommand classifies text into an action and runs it, returning the
// reply to send back.
func (a *AgentService) HandleCommand(ctx context.Context, senderPhone, text string) (string, error) {
	action, err := a.Provider.RouteCommand(ctx, text)
	if err != nil {
		metrics.OracleFailures.Inc()
		slog.Error("agent: oracle failure routing command", "err", err)
		return "Sorry, I could not understand that. Please try again.", nil
	}
	slog.Info("agent decision", "action", string(action.Action))

	switch action.Action {
	case oracle.ActionCreateSession:
		return a.createSession(ctx, senderPhone, action.CreateSession)
	case oracle.ActionCloseSession:
		return a.closeSession(ctx, action.CloseSession)
	case oracle.ActionAssignItem:
		return a.assignItem(ctx, action.AssignItem)
	default:
		return unknownReply(action.Unknown), nil
	}
}

func (a *AgentService) createSession(ctx context.Context, senderPhone string, data *oracle.CreateSessionData) (string, error) {
	if data == nil || strings.TrimSpace(data.Description) == "" {
		return "I need a description for the new session.", nil
	}
	session, err := a.Sessions.Create(ctx, senderPhone, data.Description)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "I don't know this phone number yet, so I can't open a session for it.", nil
		}
		return "", err
	}
	return fmt.Sprintf("✅ Created session %q (id %d).\nShare code: %s", session.Description, session.ID, session.ShareCode), nil
}

func (a *AgentService) closeSession(ctx context.Context, data *oracle.CloseSessionData) (string, error) {
	if data == nil || (data.SessionID == nil && strings.TrimSpace(data.SessionDescription) == "") {
		return "I need a session id or description to close.", nil
	}

	var (
		session repository.Session
		err     error
	)
	if data.SessionID != nil {
		session, err = a.Sessions.CloseByID(ctx, *data.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("Session %d was not found.", *data.SessionID), nil
		}
	} else {
		session, err = a.Sessions.CloseByDescription(ctx, data.SessionDescription)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("No session matching %q was found.", data.SessionDescription), nil
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Closed session %q (id %d).", session.Description, session.ID), nil
}

func (a *AgentService) assignItem(ctx context.Context, data *oracle.AssignItemData) (string, error) {
	if data == nil {
		return "I need an item and a user to make an assignment.", nil
	}

	user, reply, err := a.resolveUser(ctx, data)
	if reply != "" || err != nil {
		return reply, err
	}
	item, reply, err := a.resolveItem(ctx, data)
	if reply != "" || err != nil {
		return reply, err
	}

	if err := a.Items.AssignDebtor(ctx, item.ID, user.ID); err != nil {
		return "", err
	}
	slog.Info("agent: item assigned", "item_id", item.ID, "user_id", user.ID)
	return fmt.Sprintf("✅ %s now owes %q ($%.2f).", user.Name, item.Description, item.Total), nil
}

// resolveUser finds the assignee by id or partial name. Several name hits
// log a warning and the first one wins.
func (a *AgentService) resolveUser(ctx context.Context, data *oracle.AssignItemData) (repository.User, string, error) {
	switch {
	case data.UserID != nil:
		user, err := a.Users.GetByID(ctx, *data.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return repository.User{}, fmt.Sprintf("User %d was not found.", *data.UserID), nil
		}
		if err != nil {
			return repository.User{}, "", err
		}
		return user, "", nil
	case strings.TrimSpace(data.UserName) != "":
		found, err := a.Users.SearchByName(ctx, data.UserName)
		if err != nil {
			return repository.User{}, "", err
		}
		if len(found) == 0 {
			return repository.User{}, fmt.Sprintf("No user named %q was found.", data.UserName), nil
		}
		if len(found) > 1 {
			slog.Warn("multiple users matched name, using first",
				"query", data.UserName, "matches", len(found), "user_id", found[0].ID)
		}
		return found[0], "", nil
	default:
		return repository.User{}, "I need a user id or name for the assignment.", nil
	}
}

// resolveItem finds the target by id, or by invoice when the invoice has
// exactly one item; several items are an ambiguity the user must resolve.
func (a *AgentService) resolveItem(ctx context.Context, data *oracle.AssignItemData) (repository.Item, string, error) {
	switch {
	case data.ItemID != nil:
		item, err := a.Items.GetByID(ctx, *data.ItemID)
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Item{}, fmt.Sprintf("Item %d was not found.", *data.ItemID), nil
		}
		if err != nil {
			return repository.Item{}, "", err
		}
		return item, "", nil
	case data.InvoiceID != nil:
		items, err := a.Items.ListByInvoice(ctx, *data.InvoiceID)
		if err != nil {
			return repository.Item{}, "", err
		}
		switch len(items) {
		case 0:
			return repository.Item{}, fmt.Sprintf("Invoice %d has no items.", *data.InvoiceID), nil
		case 1:
			slog.Warn("using single item of invoice for assignment",
				"invoice_id", *data.InvoiceID, "item_id", items[0].ID)
			return items[0], "", nil
		default:
			return repository.Item{}, fmt.Sprintf("Invoice %d has %d items; please specify the item id.", *data.InvoiceID, len(items)), nil
		}
	default:
		return repository.Item{}, "I need an item id, or an invoice id whose single item I should use.", nil
	}
}

func unknownReply(data *oracle.UnknownData) string {
	reason := "could not determine an action from the text"
	if data != nil && strings.TrimSpace(data.Reason) != "" {
		reason = data.Reason
	}
	msg := "Unknown action: " + reason
	if data != nil && strings.TrimSpace(data.SuggestedAction) != "" {
		msg += ". Suggestion: " + data.SuggestedAction
	}
	return msg
}
