package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recruitflow/unipile-sync/internal/domain"
	"github.com/recruitflow/unipile-sync/internal/unipile"
)

// AccountLister reads the provider's account list.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]unipile.Account, error)
}

// AccountReader reads the local account mirror maintained by the
// account-status handler.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*domain.ExternalAccount, error)
}

type AccountHandler struct {
	provider AccountLister
	mirror   AccountReader
}

func NewAccountHandler(provider AccountLister, mirror AccountReader) *AccountHandler {
	return &AccountHandler{provider: provider, mirror: mirror}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.provider.ListAccounts(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to list provider accounts")
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// Status serves the local mirror, not the provider: this is what the
// CRUD layer consults to decide whether publishing is possible.
func (h *AccountHandler) Status(w http.ResponseWriter, r *http.Request) {
	acct, err := h.mirror.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read account status")
		return
	}
	if acct == nil {
		respondError(w, http.StatusNotFound, "account not known")
		return
	}
	respondJSON(w, http.StatusOK, acct)
}
