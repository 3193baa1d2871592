package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/ctx"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/rbac"
	"github.com/shashiranjanraj/campusmart/pkg/sse"
)

// liveHeartbeat keeps idle SSE connections open through proxies.
const liveHeartbeat = 15 * time.Second

// multipartLimit bounds product forms: the image plus its text fields.
const multipartLimit = repositories.MaxImageBytes + 1<<20

// productInput is the create form; the seller comes from the session.
type productInput struct {
	Name        string  `json:"name"        validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Price       float64 `json:"price"       validate:"gte=0"`
	Stock       int     `json:"stock"       validate:"gte=0"`
	ImageURL    string  `json:"imageUrl"    validate:"nullable,url"`
}

type ProductController struct {
	products *repositories.ProductRepository
}

func NewProductController(products *repositories.ProductRepository) *ProductController {
	return &ProductController{products: products}
}

// GET /api/products
func (pc *ProductController) Index(c *ctx.Context) {
	products, err := pc.products.ListAvailable(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(products)
}

// GET /api/products/live streams the in-stock products as "products" events.
func (pc *ProductController) Live(c *ctx.Context) {
	feed, err := pc.products.ListLive(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	defer feed.Close()

	stream := sse.New(c.W, c.R)
	if err := sse.Pipe(stream, "products", feed.Updates(), liveHeartbeat); err != nil {
		logger.WithCtx(c.Context()).Debug("products: live stream ended", "error", err)
	}
	if err := feed.Err(); err != nil {
		logger.WithCtx(c.Context()).Error("products: live feed failed", "error", err)
	}
}

// GET /api/products/{id}
func (pc *ProductController) Show(c *ctx.Context) {
	p, err := pc.products.GetByID(c.Context(), c.Param("id"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(p)
}

// POST /api/products accepts JSON, or a multipart form with an optional
// "image" file.
func (pc *ProductController) Store(c *ctx.Context) {
	var (
		in  productInput
		img *repositories.Image
	)
	if strings.HasPrefix(c.Header("Content-Type"), "multipart/form-data") {
		if !c.BindMultipart(multipartLimit) {
			return
		}
		var errs map[string]string
		in, errs = productForm(c.R)
		if len(errs) > 0 {
			c.ValidationError(errs)
			return
		}
		file, header, err := c.R.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			img = imageFrom(file, header)
		case !errors.Is(err, http.ErrMissingFile):
			c.Error(http.StatusBadRequest, "invalid image: "+err.Error())
			return
		}
	} else if !c.BindJSON(&in) {
		return
	}

	product := models.NewProduct{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		SellerID:    c.UserID(),
	}
	if sess := c.Session(); sess != nil {
		product.SellerName = sess.UserName()
	}
	id, err := pc.products.Create(c.Context(), product, img)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(map[string]string{"id": id})
}

// POST /api/products/images
func (pc *ProductController) UploadImage(c *ctx.Context) {
	if !c.BindMultipart(multipartLimit) {
		return
	}
	file, header, err := c.R.FormFile("image")
	if err != nil {
		c.Error(http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	url, err := pc.products.UploadImage(c.Context(), *imageFrom(file, header))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(map[string]string{"imageUrl": url})
}

// PATCH /api/products/{id}
func (pc *ProductController) Update(c *ctx.Context) {
	var patch models.ProductPatch
	if !c.BindJSON(&patch) {
		return
	}
	id := c.Param("id")
	if err := pc.authorize(c, id); err != nil {
		c.Fail(err)
		return
	}
	if err := pc.products.Update(c.Context(), id, patch); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Product updated")
}

// DELETE /api/products/{id}
func (pc *ProductController) Destroy(c *ctx.Context) {
	id := c.Param("id")
	if err := pc.authorize(c, id); err != nil {
		c.Fail(err)
		return
	}
	if err := pc.products.Delete(c.Context(), id); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Product deleted")
}

// GET /api/seller/products
func (pc *ProductController) Mine(c *ctx.Context) {
	products, err := pc.products.ListBySeller(c.Context(), c.UserID())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(products)
}

// authorize lets sellers change their own products and admins any product.
func (pc *ProductController) authorize(c *ctx.Context, id string) error {
	if c.Role() == rbac.RoleAdmin {
		return nil
	}
	p, err := pc.products.GetByID(c.Context(), id)
	if err != nil {
		return err
	}
	if p.SellerID != c.UserID() {
		return apperr.AccessDenied("product %s belongs to another seller", id)
	}
	return nil
}

func imageFrom(file multipart.File, header *multipart.FileHeader) *repositories.Image {
	return &repositories.Image{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

// productForm reads the create form from multipart fields. Numeric fields
// that do not parse are reported like validation failures; the rest is
// validated by the repository.
func productForm(r *http.Request) (productInput, map[string]string) {
	errs := map[string]string{}
	in := productInput{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: r.FormValue("description"),
		ImageURL:    strings.TrimSpace(r.FormValue("imageUrl")),
	}
	if v := r.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs["price"] = "The price field must be a number."
		}
		in.Price = price
	}
	if v := r.FormValue("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			errs["stock"] = "The stock field must be an integer."
		}
		in.Stock = stock
	}
	return in, errs
}
