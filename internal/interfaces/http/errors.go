package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/Inventario-movimientos/internal/application/dto"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bindJSON parsea el body y valida las etiquetas validate del DTO.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return writeBound(c, dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	return validateDTO(c, dst)
}

// bindQuery parsea y valida la query string.
func bindQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return writeBound(c, dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	return validateDTO(c, dst)
}

// errBound indica que la respuesta de error ya se escribió.
var errBound = errors.New("respuesta de error escrita")

func validateDTO(c *fiber.Ctx, dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	resp := dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"}
	for _, fe := range verrs {
		resp.Fields = append(resp.Fields, dto.Field{Field: fe.Namespace(), Code: fe.Tag(), Message: fe.Error()})
	}
	return writeBound(c, resp)
}

// writeBound escribe un 400 y devuelve errBound para que el handler corte.
func writeBound(c *fiber.Ctx, resp dto.ErrorResponse) error {
	if err := c.Status(fiber.StatusBadRequest).JSON(resp); err != nil {
		return err
	}
	return errBound
}

// writeError traduce errores de dominio a HTTP: Validation 400, BusinessRule 409 (403 si es de
// empresa), NotFound 404, el resto 500.
func writeError(c *fiber.Ctx, err error) error {
	var (
		ve *domain.ValidationError
		be *domain.BusinessRuleError
		nf *domain.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		resp := dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"}
		for _, it := range ve.Items {
			resp.Fields = append(resp.Fields, dto.Field{Field: it.Field, Code: it.Code, Message: it.Message})
		}
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	case errors.As(err, &be):
		status := fiber.StatusConflict
		if be.Code == domain.CodeForbiddenCompany {
			status = fiber.StatusForbidden
		}
		return c.Status(status).JSON(dto.ErrorResponse{Code: be.Code, Message: be.Message, Details: be.Details})
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: nf.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "recurso duplicado"})
	}
	log.Error().Err(err).Str("path", c.Path()).Str("company_id", GetCompanyID(c)).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
