package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"pantry/internal/api/dto"
	"pantry/internal/api/services"
	"pantry/internal/domain"
)

type InventoryHandler struct {
	inventoryService *services.InventoryService
}

func NewInventoryHandler(inventoryService *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
	}
}

// GetInventory godoc
// @Summary List inventory
// @Description List pantry items ordered by name
// @Tags inventory
// @Produce json
// @Param search query string false "Case-insensitive name substring"
// @Param quantity query int false "Exact quantity"
// @Success 200 {object} dto.InventoryListResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/inventory [get]
func (h *InventoryHandler) GetInventory(c echo.Context) error {
	filter := services.InventoryFilter{Search: c.QueryParam("search")}
	if q := c.QueryParam("quantity"); q != "" {
		quantity, err := strconv.Atoi(q)
		if err != nil || quantity < 1 {
			return ErrBadRequest(c, "quantity must be a positive integer")
		}
		filter.Quantity = quantity
	}

	items, err := h.inventoryService.List(c.Request().Context(), filter)
	if err != nil {
		return ErrInternalServerError(c)
	}

	return c.JSON(http.StatusOK, dto.InventoryListResponse{Items: dto.InventoryItemsFromDomain(items)})
}

// GetItem godoc
// @Summary Get inventory item
// @Tags inventory
// @Produce json
// @Param name path string true "Item name"
// @Success 200 {object} dto.InventoryItem
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/inventory/{name} [get]
func (h *InventoryHandler) GetItem(c echo.Context) error {
	name, err := itemName(c)
	if err != nil {
		return ErrBadRequest(c, "invalid item name")
	}
	item, err := h.inventoryService.Get(c.Request().Context(), name)
	if err != nil {
		return inventoryError(c, err)
	}
	return c.JSON(http.StatusOK, dto.InventoryItemFromDomain(item))
}

// AddItem godoc
// @Summary Add inventory item
// @Description Add quantity units of an item, creating it when absent
// @Tags inventory
// @Accept json
// @Produce json
// @Param request body dto.AddItemRequest true "Item"
// @Success 200 {object} dto.InventoryItem
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/inventory [post]
func (h *InventoryHandler) AddItem(c echo.Context) error {
	var req dto.AddItemRequest
	if err := c.Bind(&req); err != nil {
		return ErrBadRequest(c, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return ErrBadRequest(c, err.Error())
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := h.inventoryService.Add(c.Request().Context(), req.Name, quantity)
	if err != nil {
		return inventoryError(c, err)
	}
	return c.JSON(http.StatusOK, dto.InventoryItemFromDomain(item))
}

// RemoveItem godoc
// @Summary Remove one unit
// @Description Decrement an item by one, deleting it at zero
// @Tags inventory
// @Produce json
// @Param name path string true "Item name"
// @Success 200 {object} dto.RemoveItemResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/inventory/{name}/remove [post]
func (h *InventoryHandler) RemoveItem(c echo.Context) error {
	name, err := itemName(c)
	if err != nil {
		return ErrBadRequest(c, "invalid item name")
	}
	item, err := h.inventoryService.Remove(c.Request().Context(), name)
	if err != nil {
		return inventoryError(c, err)
	}
	return c.JSON(http.StatusOK, dto.RemoveItemResponse{
		Name:     item.Name,
		Quantity: item.Quantity,
		Deleted:  item.Deleted(),
	})
}

// MergeItems godoc
// @Summary Merge detected items
// @Description Apply a confirmed ingestion result to the inventory
// @Tags inventory
// @Accept json
// @Produce json
// @Param request body dto.MergeRequest true "Items"
// @Success 200 {object} dto.MergeResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/inventory/merge [post]
func (h *InventoryHandler) MergeItems(c echo.Context) error {
	var req dto.MergeRequest
	if err := c.Bind(&req); err != nil {
		return ErrBadRequest(c, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return ErrBadRequest(c, err.Error())
	}

	applied, err := h.inventoryService.Merge(c.Request().Context(), domain.IngestionResult(req.Items))
	if err != nil {
		return inventoryError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MergeResponse{Items: dto.InventoryItemsFromDomain(applied)})
}

// itemName returns the decoded :name param. Echo routes on URL.RawPath when
// the request has one, leaving params such as %26 escaped.
func itemName(c echo.Context) (string, error) {
	name := c.Param("name")
	if c.Request().URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func inventoryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidItemName):
		return ErrBadRequest(c, "invalid item name")
	case errors.Is(err, domain.ErrInvalidDelta):
		return ErrBadRequest(c, "quantity must be a positive integer")
	case errors.Is(err, domain.ErrItemNotFound):
		return ErrNotFound(c, "item not found")
	default:
		c.Logger().Errorf("[Inventory] %v", err)
		return ErrInternalServerError(c)
	}
}
