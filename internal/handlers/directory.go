package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/internal/utils"
	"gorm.io/gorm"
)

// DirectoryHandler handles the property and vendor directory routes
type DirectoryHandler struct {
	DB *gorm.DB
}

// ListProperties handles GET /api/properties
// @Summary List properties
// @Tags Directory
// @Produce json
// @Success 200 {array} models.Property
// @Router /properties [get]
func (h *DirectoryHandler) ListProperties(c *fiber.Ctx) error {
	properties, err := services.ListProperties(h.DB)
	if err != nil {
		return serviceErrorResponse(c, err, "listProperties")
	}
	return utils.SuccessResponse(c, properties, fiber.StatusOK)
}

// CreateProperty handles POST /api/properties
// @Summary Create a property
// @Tags Directory
// @Accept json
// @Produce json
// @Param body body services.PropertyInput true "Property definition"
// @Success 201 {object} models.Property
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /properties [post]
func (h *DirectoryHandler) CreateProperty(c *fiber.Ctx) error {
	var input services.PropertyInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "properties.validation.input")
	}

	property, err := services.CreateProperty(h.DB, input)
	if err != nil {
		return serviceErrorResponse(c, err, "createProperty")
	}
	return utils.SuccessResponse(c, property, fiber.StatusCreated)
}

// UpdateProperty handles PATCH /api/properties/:id
// @Summary Update a property
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Param body body services.PropertyInput true "Fields to change"
// @Success 200 {object} models.Property
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /properties/{id} [patch]
func (h *DirectoryHandler) UpdateProperty(c *fiber.Ctx) error {
	var input services.PropertyInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "properties.validation.input")
	}

	property, err := services.UpdateProperty(h.DB, c.Params("id"), input)
	if err != nil {
		return serviceErrorResponse(c, err, "updateProperty")
	}
	return utils.SuccessResponse(c, property, fiber.StatusOK)
}

// ListVendors handles GET /api/vendors
// @Summary List vendors
// @Tags Directory
// @Produce json
// @Param includeInactive query bool false "Include inactive vendors"
// @Success 200 {array} models.Vendor
// @Router /vendors [get]
func (h *DirectoryHandler) ListVendors(c *fiber.Ctx) error {
	vendors, err := services.ListVendors(h.DB, c.QueryBool("includeInactive"))
	if err != nil {
		return serviceErrorResponse(c, err, "listVendors")
	}
	return utils.SuccessResponse(c, vendors, fiber.StatusOK)
}

// CreateVendor handles POST /api/vendors
// @Summary Create a vendor
// @Tags Directory
// @Accept json
// @Produce json
// @Param body body services.VendorInput true "Vendor definition"
// @Success 201 {object} models.Vendor
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /vendors [post]
func (h *DirectoryHandler) CreateVendor(c *fiber.Ctx) error {
	var input services.VendorInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "vendors.validation.input")
	}

	vendor, err := services.CreateVendor(h.DB, input)
	if err != nil {
		return serviceErrorResponse(c, err, "createVendor")
	}
	return utils.SuccessResponse(c, vendor, fiber.StatusCreated)
}

// UpdateVendor handles PATCH /api/vendors/:id
// @Summary Update a vendor
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Vendor ID"
// @Param body body services.VendorInput true "Fields to change"
// @Success 200 {object} models.Vendor
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /vendors/{id} [patch]
func (h *DirectoryHandler) UpdateVendor(c *fiber.Ctx) error {
	var input services.VendorInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "vendors.validation.input")
	}

	vendor, err := services.UpdateVendor(h.DB, c.Params("id"), input)
	if err != nil {
		return serviceErrorResponse(c, err, "updateVendor")
	}
	return utils.SuccessResponse(c, vendor, fiber.StatusOK)
}
