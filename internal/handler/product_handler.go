package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bakery-service/internal/model"
	"bakery-service/internal/ordering"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

// ProductHandler covers the per-bakery catalog and the cross-bakery view.
// Deletion and copy-merge go through the storage port so the referential
// guard and the quantity arithmetic share one implementation with checkout.
type ProductHandler struct {
	db    *gorm.DB
	store ordering.Store
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(db *gorm.DB, store ordering.Store) *ProductHandler {
	return &ProductHandler{db: db, store: store}
}

// ProductRequest defines the structure for product creation requests
type ProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
	Image       string   `json:"image"`
	Categories  []string `json:"categories"`
	Types       []string `json:"types"`
}

// ListProducts handles GET /api/bakeries/:id/products
func (h *ProductHandler) ListProducts(c echo.Context) error {
	log := logger.FromEcho(c)
	bakeryID := c.Param("id")

	query := h.db.Where("bakery_id = ?", bakeryID)
	if c.QueryParam("include_archived") != "true" {
		query = query.Where("archived = ?", false)
	}

	var products []model.Product
	result := query.Order("created_at DESC").Find(&products)
	if result.Error != nil {
		log.Error("Failed to list products", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve products"})
	}

	log.Info("Products retrieved", zap.String("bakery_id", bakeryID), zap.Int("count", len(products)))
	return c.JSON(http.StatusOK, products)
}

// CrossBakeryAvailability reports one bakery's stock of a grouped product.
type CrossBakeryAvailability struct {
	BakeryID      uint   `json:"bakery_id"`
	BakeryName    string `json:"bakery_name"`
	BakeryAddress string `json:"bakery_address"`
	ProductID     uint   `json:"product_id"`
	Quantity      int    `json:"quantity"`
}

// CrossBakeryProduct groups same-named, same-priced products across bakeries.
type CrossBakeryProduct struct {
	ID            uint                      `json:"id"` // first product ID as primary
	Name          string                    `json:"name"`
	Price         float64                   `json:"price"`
	Image         string                    `json:"image"`
	Description   string                    `json:"description"`
	Categories    []string                  `json:"categories"`
	Types         []string                  `json:"types"`
	TotalQuantity int                       `json:"total_quantity"`
	Availability  []CrossBakeryAvailability `json:"availability"`
}

// ListCrossBakery handles GET /api/products: the aggregated customer-facing
// catalog. Products are grouped by (name, price) so the same croissant sold
// by three bakeries shows once with per-bakery availability.
func (h *ProductHandler) ListCrossBakery(c echo.Context) error {
	log := logger.FromEcho(c)

	type row struct {
		model.Product
		BakeryName    string
		BakeryAddress string
	}

	var rows []row
	result := h.db.Model(&model.Product{}).
		Select("products.*, bakeries.name AS bakery_name, bakeries.address AS bakery_address").
		Joins("JOIN bakeries ON bakeries.id = products.bakery_id").
		Where("products.archived = ?", false).
		Order("products.created_at DESC").
		Scan(&rows)
	if result.Error != nil {
		log.Error("Failed to list cross-bakery products", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve products"})
	}

	grouped := make(map[string]*CrossBakeryProduct)
	var order []string
	for _, r := range rows {
		key := r.Name + "-" + strconv.FormatFloat(r.Price, 'f', 2, 64)
		entry, ok := grouped[key]
		if !ok {
			entry = &CrossBakeryProduct{
				ID:          r.ID,
				Name:        r.Name,
				Price:       r.Price,
				Image:       r.Image,
				Description: r.Description,
				Categories:  r.Categories,
				Types:       r.Types,
			}
			grouped[key] = entry
			order = append(order, key)
		}
		entry.TotalQuantity += r.Quantity
		entry.Availability = append(entry.Availability, CrossBakeryAvailability{
			BakeryID:      r.BakeryID,
			BakeryName:    r.BakeryName,
			BakeryAddress: r.BakeryAddress,
			ProductID:     r.ID,
			Quantity:      r.Quantity,
		})
	}

	catalog := make([]*CrossBakeryProduct, 0, len(order))
	for _, key := range order {
		catalog = append(catalog, grouped[key])
	}

	log.Info("Cross-bakery catalog retrieved", zap.Int("groups", len(catalog)))
	return c.JSON(http.StatusOK, catalog)
}

// CreateProduct handles POST /api/bakeries/:id/products (staff)
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	bakeryID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bakery id"})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be greater than zero"})
	}
	if req.Quantity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity cannot be negative"})
	}

	product := model.Product{
		BakeryID:    uint(bakeryID),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Image:       req.Image,
		Categories:  req.Categories,
		Types:       req.Types,
	}

	if err := h.db.Create(&product).Error; err != nil {
		log.Error("Failed to create product", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create product"})
	}

	prometheus.RecordProductOperation("create")
	prometheus.UpdateProductInventory(strconv.FormatUint(uint64(product.ID), 10), product.Name, float64(product.Quantity))
	log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.Uint("bakery_id", product.BakeryID),
		zap.String("name", product.Name))
	return c.JSON(http.StatusCreated, product)
}

// UpdateProductRequest carries a partial product edit: restock, archive,
// price/description changes.
type UpdateProductRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Price       *float64  `json:"price"`
	Quantity    *int      `json:"quantity"`
	Archived    *bool     `json:"archived"`
	Image       *string   `json:"image"`
	Categories  *[]string `json:"categories"`
	Types       *[]string `json:"types"`
}

// UpdateProduct handles PATCH /api/bakeries/:id/products/:productId (staff)
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	var req UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	product, err := h.productForBakery(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	if req.Name != nil {
		if *req.Name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be greater than zero"})
		}
		product.Price = *req.Price
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity cannot be negative"})
		}
		product.Quantity = *req.Quantity
	}
	if req.Archived != nil {
		product.Archived = *req.Archived
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	if req.Categories != nil {
		product.Categories = *req.Categories
	}
	if req.Types != nil {
		product.Types = *req.Types
	}

	if err := h.db.Save(product).Error; err != nil {
		log.Error("Failed to update product", zap.Uint("product_id", product.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update product"})
	}

	prometheus.RecordProductOperation("update")
	prometheus.UpdateProductInventory(strconv.FormatUint(uint64(product.ID), 10), product.Name, float64(product.Quantity))
	log.Info("Product updated",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("quantity", product.Quantity),
		zap.Bool("archived", product.Archived))
	return c.JSON(http.StatusOK, product)
}

// CopyProductRequest clones another bakery's product into this catalog.
type CopyProductRequest struct {
	SourceProductID uint `json:"source_product_id"`
	Quantity        int  `json:"quantity"`
}

// CopyProduct handles POST /api/bakeries/:id/products/copy (staff). If the
// bakery already sells the same (name, price), quantities are merged instead
// of creating a duplicate row.
func (h *ProductHandler) CopyProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	bakeryID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bakery id"})
	}

	var req CopyProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if req.SourceProductID == 0 || req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "source_product_id and a positive quantity are required"})
	}

	ctx := c.Request().Context()

	source, err := h.store.ProductByID(ctx, req.SourceProductID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Source product not found"})
	}

	existing, err := h.store.FirstProductByNamePrice(ctx, uint(bakeryID), source.Name, source.Price)
	if err == nil {
		// A checkout may be decrementing the same row right now, so the
		// merge goes through the atomic quantity update.
		merged, err := h.store.AdjustStock(ctx, existing.ID, req.Quantity)
		if err != nil {
			log.Error("Failed to merge product copy", zap.Uint("product_id", existing.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to copy product"})
		}
		prometheus.RecordProductOperation("copy_merge")
		log.Info("Product copy merged into existing row",
			zap.Uint("product_id", merged.ID),
			zap.Int("added_quantity", req.Quantity))
		return c.JSON(http.StatusOK, merged)
	}

	clone := model.Product{
		BakeryID:    uint(bakeryID),
		Name:        source.Name,
		Description: source.Description,
		Price:       source.Price,
		Quantity:    req.Quantity,
		Image:       source.Image,
		Categories:  source.Categories,
		Types:       source.Types,
	}
	if err := h.db.Create(&clone).Error; err != nil {
		log.Error("Failed to create product copy", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to copy product"})
	}

	prometheus.RecordProductOperation("copy")
	log.Info("Product copied",
		zap.Uint("source_product_id", source.ID),
		zap.Uint("product_id", clone.ID))
	return c.JSON(http.StatusCreated, clone)
}

// DeleteProduct handles DELETE /api/bakeries/:id/products/:productId and,
// with ?archived=true and no product id, the bulk cleanup of archived rows.
// A product referenced by any order line is never deleted.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	if c.QueryParam("archived") == "true" && c.Param("productId") == "" {
		return h.deleteArchived(c)
	}

	bakeryID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bakery id"})
	}
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	ctx := c.Request().Context()
	product, err := h.store.ProductOwnedBy(ctx, uint(bakeryID), uint(productID))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	referenced, err := h.store.ProductReferenced(ctx, product.ID)
	if err != nil {
		log.Error("Failed to check order references", zap.Uint("product_id", product.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete product"})
	}
	if referenced {
		log.Warn("Refusing to delete product referenced by orders", zap.Uint("product_id", product.ID))
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "product is referenced by existing orders; archive it instead",
		})
	}

	if _, err := h.store.DeleteProducts(ctx, []uint{product.ID}); err != nil {
		log.Error("Failed to delete product", zap.Uint("product_id", product.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete product"})
	}

	prometheus.RecordProductOperation("delete")
	log.Info("Product deleted", zap.Uint("product_id", product.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted"})
}

// deleteArchived removes every archived product of the bakery that no order
// references, reporting what was kept and why.
func (h *ProductHandler) deleteArchived(c echo.Context) error {
	log := logger.FromEcho(c)

	bakeryID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bakery id"})
	}

	ctx := c.Request().Context()
	archived, err := h.store.ArchivedProducts(ctx, uint(bakeryID))
	if err != nil {
		log.Error("Failed to load archived products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete products"})
	}

	var deletable []uint
	var skipped []string
	for _, product := range archived {
		referenced, err := h.store.ProductReferenced(ctx, product.ID)
		if err != nil {
			log.Error("Failed to check order references", zap.Uint("product_id", product.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete products"})
		}
		if referenced {
			skipped = append(skipped, product.Name)
		} else {
			deletable = append(deletable, product.ID)
		}
	}

	var deleted int64
	if len(deletable) > 0 {
		deleted, err = h.store.DeleteProducts(ctx, deletable)
		if err != nil {
			log.Error("Failed to delete archived products", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete products"})
		}
	}

	log.Info("Archived products deleted",
		zap.Uint64("bakery_id", bakeryID),
		zap.Int64("deleted_count", deleted),
		zap.Int("skipped_count", len(skipped)))
	return c.JSON(http.StatusOK, echo.Map{
		"deleted_count":    deleted,
		"skipped_count":    len(skipped),
		"skipped_products": skipped,
	})
}

func (h *ProductHandler) productForBakery(c echo.Context) (*model.Product, error) {
	var product model.Product
	err := h.db.Where("bakery_id = ?", c.Param("id")).
		First(&product, "id = ?", c.Param("productId")).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
