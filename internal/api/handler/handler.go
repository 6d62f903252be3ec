package handler

import (
	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/identity"
	"driftchat/backend/internal/translate"
)

// Handler bundles the HTTP surface's dependencies.
type Handler struct {
	Hub        *chathub.Hub
	Issuer     *identity.Issuer
	Translator *translate.Service
}

func NewHandler(hub *chathub.Hub, issuer *identity.Issuer, translator *translate.Service) *Handler {
	return &Handler{Hub: hub, Issuer: issuer, Translator: translator}
}
