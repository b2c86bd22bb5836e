package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"dex-task-service/internal/store"
)

type WalletHandler struct {
	Wallets *store.WalletStore
}

func NewWalletHandler(wallets *store.WalletStore) *WalletHandler {
	return &WalletHandler{Wallets: wallets}
}

type CreateWalletGroupRequest struct {
	Name            string `json:"name" validate:"required"`
	NumberOfWallets int    `json:"numberOfWallets" validate:"required"`
}

func (h *WalletHandler) CreateWalletGroup(ctx context.Context, c *app.RequestContext) {
	var req CreateWalletGroupRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	group, err := h.Wallets.CreateGroup(req.Name, req.NumberOfWallets)
	if err != nil {
		log.Printf("WalletHandler: create group %s: %v", req.Name, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *WalletHandler) GetWalletGroups(ctx context.Context, c *app.RequestContext) {
	groups, err := h.Wallets.ListGroups()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *WalletHandler) GetWalletGroup(ctx context.Context, c *app.RequestContext) {
	group, err := h.Wallets.GroupByRef(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// GetGroupWallets lists the wallets of a group. Private keys stay encrypted
// at rest and are never serialized.
func (h *WalletHandler) GetGroupWallets(ctx context.Context, c *app.RequestContext) {
	group, err := h.Wallets.GroupByRef(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	wallets, err := h.Wallets.Wallets(group.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

// ExportWalletGroup downloads the group's private keys as a text attachment,
// one key per line. Keys stay encrypted; the holder of the encryption secret
// decrypts them offline.
func (h *WalletHandler) ExportWalletGroup(ctx context.Context, c *app.RequestContext) {
	group, err := h.Wallets.GroupByRef(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	wallets, err := h.Wallets.Wallets(group.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	keys := make([]string, len(wallets))
	for i := range wallets {
		keys[i] = wallets[i].EncryptedPrivateKey
	}
	c.Response.Header.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", group.Name+"_private_keys.txt"))
	c.Data(http.StatusOK, "text/plain", []byte(strings.Join(keys, "\n")))
}

func (h *WalletHandler) DeleteWalletGroup(ctx context.Context, c *app.RequestContext) {
	group, err := h.Wallets.GroupByRef(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Wallets.DeleteGroup(group.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"deleted": group.ID})
}
