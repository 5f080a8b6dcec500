package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/account"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/message"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/wallet"
)

type WalletHandler struct {
	Ledger   *wallet.Ledger
	Accounts *account.AccountService
	Messages *message.MessageService
}

func NewWalletHandler(ledger *wallet.Ledger, accounts *account.AccountService, messages *message.MessageService) *WalletHandler {
	return &WalletHandler{Ledger: ledger, Accounts: accounts, Messages: messages}
}

func (h *WalletHandler) Statement(c *fiber.Ctx) error {
	st, err := h.Ledger.Statement(c.UserContext(), caller(c).ID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", st)
}

type dashboardStats struct {
	Balance           int64   `json:"balance"`
	Rating            float64 `json:"rating"`
	TotalReviews      int     `json:"total_reviews"`
	UnreadMessages    int64   `json:"unread_messages"`
	CompletedProjects *int    `json:"completed_projects,omitempty"`
	ProjectsPublished *int    `json:"projects_published,omitempty"`
	TotalSpent        *int64  `json:"total_spent,omitempty"`
}

// Dashboard summarises the caller's account for the home screen.
func (h *WalletHandler) Dashboard(c *fiber.Ctx) error {
	who := caller(c)
	u, err := h.Accounts.Me(c.UserContext(), who)
	if err != nil {
		return err
	}
	unread, err := h.Messages.Unread(c.UserContext(), who)
	if err != nil {
		return err
	}

	out := dashboardStats{
		Balance:        u.Balance,
		Rating:         u.Rating,
		TotalReviews:   u.TotalReviews,
		UnreadMessages: unread,
	}
	if p, ok := u.Freelance(); ok {
		out.CompletedProjects = &p.CompletedProjects
	}
	if p, ok := u.Client(); ok {
		out.ProjectsPublished = &p.ProjectsPublished
		out.TotalSpent = &p.TotalSpent
	}
	return respond(c, fiber.StatusOK, "", out)
}
