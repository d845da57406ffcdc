package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/models"
	"github.com/fardelhq/shop/internal/mykafka"
)

func newProductHandler(db *gorm.DB, uploadDir string) *ProductHandler {
	return &ProductHandler{DB: db, Producer: &mykafka.Producer{}, UploadDir: uploadDir}
}

func TestCreateAndGetProduct(t *testing.T) {
	db := InitTestDB(t)
	h := newProductHandler(db, t.TempDir())
	e := newTestEcho()

	c, rec := jsonRequest(e, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":        "Mug",
		"description": "Ceramic mug",
		"price":       7.5,
		"count":       3,
	})
	require.NoError(t, h.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	c2, rec2 := jsonRequest(e, http.MethodGet, "/api/v1/products/1", nil)
	c2.SetParamNames("id")
	c2.SetParamValues("1")
	require.NoError(t, h.GetProduct(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	var got models.Product
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &got))
	require.Equal(t, "Mug", got.Name)
	require.Equal(t, 7.5, got.Price)
}

func TestGetProductsPaginationMeta(t *testing.T) {
	db := InitTestDB(t)
	h := newProductHandler(db, t.TempDir())
	e := newTestEcho()

	for i := 0; i < 15; i++ {
		require.NoError(t, db.Create(&models.Product{Name: "p", Description: "d", Price: 1}).Error)
	}

	c, rec := jsonRequest(e, http.MethodGet, "/api/v1/products?page=1&size=10", nil)
	require.NoError(t, h.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasNext    bool  `json:"has_next"`
			HasPrev    bool  `json:"has_prev"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 10)
	require.EqualValues(t, 15, resp.Meta.Total)
	require.EqualValues(t, 2, resp.Meta.TotalPages)
	require.True(t, resp.Meta.HasNext)
	require.False(t, resp.Meta.HasPrev)
}

func TestPatchProductPartial(t *testing.T) {
	db := InitTestDB(t)
	h := newProductHandler(db, t.TempDir())
	e := newTestEcho()

	require.NoError(t, db.Create(&models.Product{Name: "Mug", Description: "Ceramic mug", Price: 7.5, Count: 3}).Error)

	c, rec := jsonRequest(e, http.MethodPatch, "/api/v1/products/1", map[string]interface{}{
		"price": 9.0,
	})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.PatchProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Product
	require.NoError(t, db.First(&updated, 1).Error)
	require.Equal(t, 9.0, updated.Price)
	require.Equal(t, "Mug", updated.Name, "omitted fields keep prior values")
}

func TestDeleteProduct(t *testing.T) {
	db := InitTestDB(t)
	h := newProductHandler(db, t.TempDir())
	e := newTestEcho()

	require.NoError(t, db.Create(&models.Product{Name: "Mug", Description: "d", Price: 1}).Error)

	c, rec := jsonRequest(e, http.MethodDelete, "/api/v1/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.DeleteProduct(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUploadImage(t *testing.T) {
	db := InitTestDB(t)
	dir := t.TempDir()
	h := newProductHandler(db, dir)
	e := newTestEcho()

	require.NoError(t, db.Create(&models.Product{Name: "Mug", Description: "d", Price: 1}).Error)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not-a-real-png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/1/image", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.UploadImage(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var prod models.Product
	require.NoError(t, db.First(&prod, 1).Error)
	require.Equal(t, "product_1.png", prod.ImagePath)

	data, err := os.ReadFile(filepath.Join(dir, "product_1.png"))
	require.NoError(t, err)
	require.Equal(t, "not-a-real-png", string(data))
}

func TestUploadImageRejectsUnknownExtension(t *testing.T) {
	db := InitTestDB(t)
	h := newProductHandler(db, t.TempDir())
	e := newTestEcho()

	require.NoError(t, db.Create(&models.Product{Name: "Mug", Description: "d", Price: 1}).Error)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "exploit.sh")
	require.NoError(t, err)
	_, err = part.Write([]byte("#!/bin/sh"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/1/image", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	uploadErr := h.UploadImage(c)
	require.Error(t, uploadErr)
	he, ok := uploadErr.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}
