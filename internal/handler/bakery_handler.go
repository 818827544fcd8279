package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bakery-service/internal/model"
	"bakery-service/pkg/jwtutil"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

// BakeryHandler covers tenant provisioning, listing and staff login.
type BakeryHandler struct {
	db *gorm.DB
}

// NewBakeryHandler creates a BakeryHandler.
func NewBakeryHandler(db *gorm.DB) *BakeryHandler {
	return &BakeryHandler{db: db}
}

// ListBakeries handles GET /api/bakeries
func (h *BakeryHandler) ListBakeries(c echo.Context) error {
	log := logger.FromEcho(c)

	var bakeries []model.Bakery
	if err := h.db.Order("id ASC").Find(&bakeries).Error; err != nil {
		log.Error("Failed to list bakeries", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve bakeries"})
	}

	return c.JSON(http.StatusOK, bakeries)
}

// GetBakery handles GET /api/bakeries/:id
func (h *BakeryHandler) GetBakery(c echo.Context) error {
	log := logger.FromEcho(c)

	var bakery model.Bakery
	if err := h.db.First(&bakery, c.Param("id")).Error; err != nil {
		log.Warn("Bakery not found", zap.String("bakery_id", c.Param("id")))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Bakery not found"})
	}

	return c.JSON(http.StatusOK, bakery)
}

// BakeryRequest provisions a new bakery.
type BakeryRequest struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Password  string  `json:"password"`
}

// CreateBakery handles POST /api/bakeries (provisioning)
func (h *BakeryHandler) CreateBakery(c echo.Context) error {
	log := logger.FromEcho(c)

	var req BakeryRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if req.Name == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and password are required"})
	}

	var count int64
	h.db.Model(&model.Bakery{}).Where("name = ?", req.Name).Count(&count)
	if count > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Bakery with this name already exists"})
	}

	bakery := model.Bakery{
		Name:      req.Name,
		Address:   req.Address,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Password:  req.Password,
	}
	if err := h.db.Create(&bakery).Error; err != nil {
		log.Error("Failed to create bakery", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create bakery"})
	}

	log.Info("Bakery provisioned", zap.Uint("bakery_id", bakery.ID), zap.String("name", bakery.Name))
	return c.JSON(http.StatusCreated, bakery)
}

// LoginRequest authenticates bakery staff.
type LoginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/bakeries/:id/login and issues the staff JWT.
func (h *BakeryHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.AuthAttemptsCounter.Inc()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	var bakery model.Bakery
	if err := h.db.First(&bakery, c.Param("id")).Error; err != nil {
		prometheus.AuthErrorsCounter.Inc()
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Bakery not found"})
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(bakery.Password)) != 1 {
		log.Warn("Failed bakery login", zap.Uint("bakery_id", bakery.ID))
		prometheus.AuthErrorsCounter.Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(bakery.ID, bakery.Name)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to generate token"})
	}

	log.Info("Bakery staff logged in", zap.Uint("bakery_id", bakery.ID))
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}
