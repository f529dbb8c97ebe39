package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"textilemart/internal/domain/model"
	"textilemart/internal/infra/storage"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /products の公開APIとadmin用の更新API
type ProductHandler struct {
	uc            *usecase.ProductUsecase
	maxImageBytes int64
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase, maxImageBytes int64) *ProductHandler {
	return &ProductHandler{uc: uc, maxImageBytes: maxImageBytes}
}

// 在庫更新の入力
type inventoryUpdateRequest struct {
	Stock  *int64 `json:"stock"`
	Reason string `json:"reason"`
}

func (h *ProductHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/products")
	g.GET("", h.list)
	g.GET("/:id", h.detail)

	admin := []echo.MiddlewareFunc{authn, middleware.RequireRole(model.RoleAdmin)}
	g.POST("", h.create, admin...)
	g.PUT("/:id", h.update, admin...)
	g.DELETE("/:id", h.delete, admin...)
	g.PUT("/:id/inventory", h.updateInventory, admin...)
}

func (h *ProductHandler) list(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return writeError(c, err)
	}
	minPrice, err := queryDecimal(c, "min_price")
	if err != nil {
		return writeError(c, err)
	}
	maxPrice, err := queryDecimal(c, "max_price")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.List(c.Request().Context(), usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Q:        c.QueryParam("q"),
		Category: c.QueryParam("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "products fetched successfully", out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "product fetched successfully", p)
}

func (h *ProductHandler) create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	form, err := h.readForm(c)
	if err != nil {
		return writeError(c, err)
	}
	defer form.close()

	in := usecase.CreateProductInput{Image: form.image}
	if form.name != nil {
		in.Name = *form.name
	}
	if form.description != nil {
		in.Description = *form.description
	}
	if form.price != nil {
		in.Price = *form.price
	}
	if form.stock != nil {
		in.Stock = *form.stock
	}
	if form.category != nil {
		in.Category = *form.category
	}

	p, err := h.uc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "product created successfully", p)
}

// 部分更新（送られたフィールドだけ変える。stock=0も有効）
func (h *ProductHandler) update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	form, err := h.readForm(c)
	if err != nil {
		return writeError(c, err)
	}
	defer form.close()

	p, err := h.uc.Update(c.Request().Context(), actor, id, usecase.UpdateProductInput{
		Name:        form.name,
		Description: form.description,
		Price:       form.price,
		Stock:       form.stock,
		Category:    form.category,
		Image:       form.image,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "product updated successfully", p)
}

func (h *ProductHandler) delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.uc.Delete(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "product deleted successfully", nil)
}

func (h *ProductHandler) updateInventory(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req inventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Stock == nil {
		return badRequest(c, "stock is required")
	}

	if err := h.uc.UpdateInventory(c.Request().Context(), actor, id, *req.Stock, req.Reason); err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "stock updated", nil)
}

// multipart/urlencoded の商品フォーム。無いフィールドはnil
type productForm struct {
	name        *string
	description *string
	price       *string
	stock       *int64
	category    *string
	image       *usecase.ImageUpload
	closer      io.Closer
}

func (f *productForm) close() {
	if f.closer != nil {
		_ = f.closer.Close()
	}
}

func (h *ProductHandler) readForm(c echo.Context) (*productForm, error) {
	values, err := c.FormParams()
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	field := func(key string) *string {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return nil
		}
		s := v[0]
		return &s
	}

	f := &productForm{
		name:        field("name"),
		description: field("description"),
		price:       field("price"),
		category:    field("category"),
	}
	if s := field("stock"); s != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(*s), 10, 64)
		if err != nil {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid stock")
		}
		f.stock = &n
	}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return f, nil
	}
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid image")
	}
	if err := storage.ValidateImage(fh.Filename, fh.Size, h.maxImageBytes); err != nil {
		var ue *storage.UploadError
		if errors.As(err, &ue) {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, ue.Message)
		}
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid image")
	}
	file, err := fh.Open()
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid image")
	}
	f.closer = file
	f.image = &usecase.ImageUpload{
		Filename:    fh.Filename,
		ContentType: storage.ContentTypeFor(fh.Filename),
		Size:        fh.Size,
		Body:        file,
	}
	return f, nil
}

func queryDecimal(c echo.Context, name string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &d, nil
}
