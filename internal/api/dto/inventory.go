package dto

import (
	"pantry/internal/domain"
)

type InventoryItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type InventoryListResponse struct {
	Items []InventoryItem `json:"items"`
}

type AddItemRequest struct {
	Name string `json:"name" validate:"required,max=128"`
	// Defaults to 1 when omitted.
	Quantity *int `json:"quantity" validate:"omitempty,min=1"`
}

type RemoveItemResponse struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Deleted  bool   `json:"deleted"`
}

type MergeRequest struct {
	Items map[string]int `json:"items" validate:"required,min=1"`
}

type MergeResponse struct {
	Items []InventoryItem `json:"items"`
}

type IngestionResponse struct {
	Data     string          `json:"data"`
	Items    map[string]int  `json:"items"`
	Merged   bool            `json:"merged"`
	ImageURL string          `json:"imageUrl"`
	Stage    string          `json:"stage"`
	Applied  []InventoryItem `json:"applied,omitempty"`
}

type IngestionErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Stage string `json:"stage"`
	Data  string `json:"data,omitempty"`
}

func InventoryItemFromDomain(item *domain.InventoryItem) InventoryItem {
	return InventoryItem{
		Name:     item.Name,
		Quantity: item.Quantity,
	}
}

func InventoryItemsFromDomain(items []*domain.InventoryItem) []InventoryItem {
	out := make([]InventoryItem, 0, len(items))
	for _, item := range items {
		out = append(out, InventoryItemFromDomain(item))
	}
	return out
}
