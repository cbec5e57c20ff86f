// Package console is a read-only terminal view of the ledger for local
// operation. All mutation goes through the message pipeline; the console
// only looks.
package console

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pmonasterio/vaquita/internal/database/repository"
)

// App ties together the ledger views.
type App struct {
	ctx   context.Context
	repos Repos

	state          viewState
	sessions       []repository.Session
	invoices       []repository.Invoice
	items          []repository.Item
	payments       []repository.Payment
	userName       map[int64]string
	sessionCursor  int
	paymentCursor  int
	openSessionID  int64
	openSessionDsc string
	status         string
}

type Repos struct {
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
	Invoices *repository.InvoiceRepo
	Items    *repository.ItemRepo
	Payments *repository.PaymentRepo
}

type viewState string

const (
	viewSessions viewState = "sessions"
	viewItems    viewState = "items"
	viewPayments viewState = "payments"
)

func New(ctx context.Context, repos Repos) *App {
	return &App{ctx: ctx, repos: repos, state: viewSessions}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadSessions(), a.loadPayments(), a.loadUsers())
}

func (a *App) loadSessions() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Sessions.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return sessionsMsg(list)
	}
}

func (a *App) loadPayments() tea.Cmd {
	return func() tea.Msg {
		list, err := a.repos.Payments.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return paymentsMsg(list)
	}
}

func (a *App) loadUsers() tea.Cmd {
	return func() tea.Msg {
		users, err := a.repos.Users.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return usersMsg(users)
	}
}

func (a *App) loadSessionDetail(sessionID int64) tea.Cmd {
	return func() tea.Msg {
		invoices, err := a.repos.Invoices.ListBySession(a.ctx, sessionID)
		if err != nil {
			return errMsg{err}
		}
		var items []repository.Item
		for _, inv := range invoices {
			list, err := a.repos.Items.ListByInvoice(a.ctx, inv.ID)
			if err != nil {
				return errMsg{err}
			}
			items = append(items, list...)
		}
		return sessionDetailMsg{Invoices: invoices, Items: items}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		switch m.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "s", "esc":
			a.state = viewSessions
			a.status = ""
		case "p":
			a.state = viewPayments
			a.status = ""
		case "r":
			return a, tea.Batch(a.loadSessions(), a.loadPayments(), a.loadUsers())
		case "up", "k":
			if a.state == viewSessions && a.sessionCursor > 0 {
				a.sessionCursor--
			}
			if a.state == viewPayments && a.paymentCursor > 0 {
				a.paymentCursor--
			}
		case "down", "j":
			if a.state == viewSessions && a.sessionCursor < len(a.sessions)-1 {
				a.sessionCursor++
			}
			if a.state == viewPayments && a.paymentCursor < len(a.payments)-1 {
				a.paymentCursor++
			}
		case "enter":
			if a.state == viewSessions && len(a.sessions) > 0 {
				s := a.sessions[a.sessionCursor]
				a.openSessionID = s.ID
				a.openSessionDsc = s.Description
				a.state = viewItems
				return a, a.loadSessionDetail(s.ID)
			}
		}
	case sessionsMsg:
		a.sessions = []repository.Session(m)
		if a.sessionCursor >= len(a.sessions) {
			a.sessionCursor = 0
		}
	case paymentsMsg:
		a.payments = []repository.Payment(m)
		if a.paymentCursor >= len(a.payments) {
			a.paymentCursor = 0
		}
	case usersMsg:
		a.userName = make(map[int64]string, len(m))
		for _, u := range m {
			a.userName[u.ID] = u.Name
		}
	case sessionDetailMsg:
		a.invoices = m.Invoices
		a.items = m.Items
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewItems:
		body = a.renderItems()
	case viewPayments:
		body = a.renderPayments()
	default:
		body = a.renderSessions()
	}
	return body
}

// messages
type sessionsMsg []repository.Session

type paymentsMsg []repository.Payment

type usersMsg []repository.User

type sessionDetailMsg struct {
	Invoices []repository.Invoice
	Items    []repository.Item
}

type errMsg struct{ error }

// styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	paidStyle  = lipgloss.NewStyle().Faint(true)
)

func (a *App) renderSessions() string {
	title := titleStyle.Render("Vaquita Sessions")
	out := title + "\n"
	if len(a.sessions) == 0 {
		out += "(no sessions yet)\n"
	}
	for i, s := range a.sessions {
		marker := " "
		if i == a.sessionCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %3d  %-30s  %-8s  owner: %s\n",
			marker, s.ID, s.Description, s.Status, a.nameFor(s.OwnerID))
	}
	out += "[enter] Open  [p] Payments  [r] Refresh  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderItems() string {
	title := titleStyle.Render("Session: " + a.openSessionDsc)
	out := title + "\n"
	for _, inv := range a.invoices {
		out += fmt.Sprintf("Invoice %d  %-24s  total %8.2f  pending %8.2f\n",
			inv.ID, inv.Description, inv.Total, inv.PendingAmount)
		for _, it := range a.items {
			if it.InvoiceID != inv.ID {
				continue
			}
			line := fmt.Sprintf("  %4d  %-30s  %8.2f  %s", it.ID, it.Description, it.Total, a.itemState(it))
			if it.IsPaid {
				line = paidStyle.Render(line)
			}
			out += line + "\n"
		}
	}
	if len(a.invoices) == 0 {
		out += "(no invoices in this session)\n"
	}
	out += "[esc] Sessions  [p] Payments  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderPayments() string {
	title := titleStyle.Render("Payments")
	out := title + "\n"
	if len(a.payments) == 0 {
		out += "(no payments yet)\n"
	}
	for i, p := range a.payments {
		marker := " "
		if i == a.paymentCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %3d  %8.2f  %s → %s  %s\n",
			marker, p.ID, p.Amount, a.nameFor(p.PayerID), a.nameFor(p.ReceiverID), shortRef(p.Reference))
	}
	out += "[s] Sessions  [r] Refresh  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) itemState(it repository.Item) string {
	if it.IsPaid {
		return "paid"
	}
	if it.DebtorID != nil {
		return "claimed by " + a.nameFor(*it.DebtorID)
	}
	return "unpaid"
}

func (a *App) nameFor(userID int64) string {
	if name, ok := a.userName[userID]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("user %d", userID)
}

func shortRef(ref string) string {
	if i := strings.IndexByte(ref, '-'); i > 0 {
		return ref[:i]
	}
	return ref
}
