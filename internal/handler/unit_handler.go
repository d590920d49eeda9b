package handler

import (
	"net/http"
	"tenancy-service/internal/model"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/logger"
	"tenancy-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateProperty registers a new property owned by the caller
func CreateProperty(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		City    string `json:"city"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse property request", zap.Error(err))
		return errJSON(c, http.StatusBadRequest, "validation_error", "Could not parse request body")
	}
	if req.Name == "" || req.Address == "" {
		return errJSON(c, http.StatusBadRequest, "validation_error", "Name and address are required")
	}

	property := model.Property{
		LandlordID: claims.UserID,
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&property).Error; err != nil {
		log.Error("Failed to create property", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to create property")
	}

	return c.JSON(http.StatusCreated, property)
}

// CreateUnit adds a rentable unit under a property owned by the caller
func CreateUnit(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		PropertyID    uint   `json:"property_id"`
		UnitNumber    string `json:"unit_number"`
		Bedrooms      int    `json:"bedrooms"`
		RentAmount    int64  `json:"rent_amount"`
		DepositAmount int64  `json:"deposit_amount"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse unit request", zap.Error(err))
		return errJSON(c, http.StatusBadRequest, "validation_error", "Could not parse request body")
	}
	if req.PropertyID == 0 || req.RentAmount <= 0 {
		return errJSON(c, http.StatusBadRequest, "validation_error", "Property ID and a positive rent amount are required")
	}

	var property model.Property
	if err := database.GetDB().First(&property, req.PropertyID).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Property not found")
	}
	if property.LandlordID != claims.UserID {
		log.Warn("Unit creation denied: caller does not own property",
			zap.Uint("property_id", property.ID), zap.Uint("caller_id", claims.UserID))
		return errJSON(c, http.StatusForbidden, "forbidden", "You do not own this property")
	}

	unit := model.Unit{
		PropertyID:    req.PropertyID,
		UnitNumber:    req.UnitNumber,
		Bedrooms:      req.Bedrooms,
		RentAmount:    req.RentAmount,
		DepositAmount: req.DepositAmount,
		ListingStatus: model.ListingAvailable,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&unit).Error; err != nil {
		log.Error("Failed to create unit", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to create unit")
	}

	return c.JSON(http.StatusCreated, unit)
}

// GetUnit retrieves one unit
func GetUnit(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var unit model.Unit
	if err := database.GetDB().First(&unit, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Unit not found")
	}
	return c.JSON(http.StatusOK, unit)
}

// UnlistUnit takes an available unit off the market. A unit with a tenancy
// in flight (applied/rented) stays where it is until that tenancy ends.
func UnlistUnit(c echo.Context) error {
	return setUnitListing(c, model.ListingAvailable, model.ListingUnlisted)
}

// RelistUnit puts an unlisted unit back on the market
func RelistUnit(c echo.Context) error {
	return setUnitListing(c, model.ListingUnlisted, model.ListingAvailable)
}

func setUnitListing(c echo.Context, from, to model.ListingStatus) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	db := database.GetDB()
	var unit model.Unit
	if err := db.Preload("Property").First(&unit, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Unit not found")
	}
	if unit.Property.LandlordID != claims.UserID {
		return errJSON(c, http.StatusForbidden, "forbidden", "You do not own this unit")
	}
	if unit.ListingStatus != from {
		return errJSON(c, http.StatusConflict, "invalid_state",
			"Unit is not "+string(from))
	}

	if err := db.Model(&unit).Update("listing_status", to).Error; err != nil {
		log.Error("Failed to update unit listing", zap.Uint("unit_id", unit.ID), zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to update unit")
	}

	unit.ListingStatus = to
	return c.JSON(http.StatusOK, unit)
}
