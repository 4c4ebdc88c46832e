package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func multipartContext(t *testing.T, fields map[string][]string, image []byte, imageName string) *gin.Context {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("PUT", "/api/products/1", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseMultipartProductRequest_PicksLastSaleEnabledValue(t *testing.T) {
	c := multipartContext(t, map[string][]string{
		"saleEnabled": {"false", "true"},
		"salePrice":   {"99"},
	}, nil, "")

	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)
	assert.True(t, parsed.SaleEnabledSet)
	assert.True(t, parsed.SaleEnabled)
	assert.True(t, parsed.SalePriceSet)
	assert.Equal(t, 99.0, parsed.SalePrice)
	assert.False(t, parsed.NameSet)
	assert.Nil(t, parsed.Image)
}

func TestParseMultipartProductRequest_Variants(t *testing.T) {
	c := multipartContext(t, map[string][]string{
		"name":    {" Runner "},
		"price":   {"120.5"},
		"variant": {"m:3", " l : 4"},
	}, nil, "")

	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)
	assert.Equal(t, "Runner", parsed.Name)
	assert.Equal(t, 120.5, parsed.Price)
	require.True(t, parsed.VariantsSet)
	assert.Equal(t, []models.Variant{{Size: "M", Stock: 3}, {Size: "L", Stock: 4}}, parsed.Variants)
	assert.Equal(t, 7, models.SumVariantStock(parsed.Variants))
}

func TestParseVariantsRejects(t *testing.T) {
	for _, raw := range []string{"M", ":3", "M:x", "M:-1"} {
		_, err := parseVariants([]string{raw})
		assert.Error(t, err, raw)
	}
	_, err := parseVariants([]string{"M:1", "m:2"})
	assert.Error(t, err)
}

func TestSaveImageAndDelete(t *testing.T) {
	root := t.TempDir()
	c := multipartContext(t, map[string][]string{"name": {"Lamp"}}, []byte("png-bytes"), "lamp.PNG")

	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)
	require.NotNil(t, parsed.Image)

	public, err := saveImage(root, parsed.Image)
	require.NoError(t, err)
	assert.Regexp(t, `^uploads/products/[0-9a-f]{24}\.png$`, public)

	stored := filepath.Join(root, "products", filepath.Base(public))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, safeDeleteUpload(root, "/"+public))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, safeDeleteUpload(root, "uploads/../../etc/passwd"))
	assert.Error(t, safeDeleteUpload(root, "static/x.png"))
	assert.NoError(t, safeDeleteUpload(root, ""))
}

func TestSaveImageRejectsExtension(t *testing.T) {
	c := multipartContext(t, nil, []byte("x"), "script.sh")
	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)

	_, err = saveImage(t.TempDir(), parsed.Image)
	require.Error(t, err)
}
