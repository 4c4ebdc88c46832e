package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/inventory"
	"storefront/internal/models"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageSize       = 5 << 20
)

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// MultipartProductInput is a product form. *Set flags tell a field that was
// sent apart from one left out, so updates can be partial.
type MultipartProductInput struct {
	Name           string
	NameSet        bool
	Price          float64
	PriceSet       bool
	CategoryID     string
	CategoryIDSet  bool
	Description    string
	DescriptionSet bool
	Brand          string
	BrandSet       bool
	Stock          int
	StockSet       bool
	Variants       []models.Variant
	VariantsSet    bool
	IsActive       bool
	IsActiveSet    bool
	SaleEnabled    bool
	SaleEnabledSet bool
	SalePrice      float64
	SalePriceSet   bool
	Image          *multipart.FileHeader
}

// lastFormValue returns the last value sent for key; repeated checkbox
// fields carry the effective value last.
func lastFormValue(c *gin.Context, key string) (string, bool) {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

func parseMultipartProductRequest(c *gin.Context) (MultipartProductInput, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return MultipartProductInput{}, formError("form", err)
	}

	input := MultipartProductInput{}

	if value, ok := lastFormValue(c, "name"); ok {
		input.Name = strings.TrimSpace(value)
		input.NameSet = true
	}
	if value, ok := lastFormValue(c, "description"); ok {
		input.Description = strings.TrimSpace(value)
		input.DescriptionSet = true
	}
	if value, ok := lastFormValue(c, "brand"); ok {
		input.Brand = strings.TrimSpace(value)
		input.BrandSet = true
	}
	if value, ok := lastFormValue(c, "categoryId"); ok {
		input.CategoryID = strings.TrimSpace(value)
		input.CategoryIDSet = true
	}

	if value, ok := lastFormValue(c, "price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return MultipartProductInput{}, formError("price", err)
		}
		input.Price = parsed
		input.PriceSet = true
	}
	if value, ok := lastFormValue(c, "stock"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return MultipartProductInput{}, formError("stock", err)
		}
		input.Stock = parsed
		input.StockSet = true
	}
	if value, ok := lastFormValue(c, "salePrice"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return MultipartProductInput{}, formError("salePrice", err)
		}
		input.SalePrice = parsed
		input.SalePriceSet = true
	}

	if value, ok := lastFormValue(c, "isActive"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return MultipartProductInput{}, formError("isActive", err)
		}
		input.IsActive = parsed
		input.IsActiveSet = true
	}
	if value, ok := lastFormValue(c, "saleEnabled"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return MultipartProductInput{}, formError("saleEnabled", err)
		}
		input.SaleEnabled = parsed
		input.SaleEnabledSet = true
	}

	if values, ok := c.GetPostFormArray("variant"); ok {
		variants, err := parseVariants(values)
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.Variants = variants
		input.VariantsSet = true
	}

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		input.Image = file
	case !errors.Is(err, http.ErrMissingFile):
		return MultipartProductInput{}, formError("image", err)
	}

	return input, nil
}

// parseVariants reads "size:stock" pairs. Sizes are stored upper-cased and
// must be unique.
func parseVariants(values []string) ([]models.Variant, error) {
	variants := make([]models.Variant, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		size, stockRaw, ok := strings.Cut(raw, ":")
		size = inventory.NormalizeSize(size)
		if !ok || size == "" {
			return nil, formError("variant", errors.Errorf("expected size:stock, got %q", raw))
		}
		stock, err := strconv.Atoi(strings.TrimSpace(stockRaw))
		if err != nil || stock < 0 {
			return nil, formError("variant", errors.Errorf("invalid stock in %q", raw))
		}
		if _, dup := seen[size]; dup {
			return nil, formError("variant", errors.Errorf("duplicate size %q", size))
		}
		seen[size] = struct{}{}
		variants = append(variants, models.Variant{Size: size, Stock: stock})
	}
	return variants, nil
}

// saveImage stores an uploaded image under root/products and returns the
// public path it is served from.
func saveImage(root string, file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", apperr.BadRequest("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return "", apperr.Newf(apperr.CodeBadRequest, "unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return "", apperr.BadRequest("image file too large (max 5MB)")
	}

	filename := primitive.NewObjectID().Hex() + extension
	dir := filepath.Join(root, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}

	out, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", errors.Wrap(err, "save upload")
	}

	return uploadsPrefix + "products/" + filename, nil
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

func formError(field string, err error) error {
	return apperr.BadRequest("invalid form field").
		WithDetails(map[string]string{"field": field, "reason": err.Error()}).
		WithCause(err)
}
