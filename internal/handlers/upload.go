package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"

	"github.com/example/ecomserver/internal/models"
	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/services"
)

const uploadField = "images"

// UploadHandler moves profile images to the CDN.
type UploadHandler struct {
	uploader services.Uploader
	images   repository.ImageRepository
	maxFiles int
}

// NewUploadHandler constructs UploadHandler. maxFiles <= 0 disables the limit.
func NewUploadHandler(uploader services.Uploader, images repository.ImageRepository, maxFiles int) *UploadHandler {
	return &UploadHandler{uploader: uploader, images: images, maxFiles: maxFiles}
}

// Upload stores every file of the multipart "images" field on the CDN and
// returns their URLs in submission order.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form expected")
	}

	files := form.File[uploadField]
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "images is required")
	}
	if h.maxFiles > 0 && len(files) > h.maxFiles {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("at most %d images per upload", h.maxFiles))
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		file, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable file "+fh.Filename)
		}
		url, err := h.uploader.Upload(c.UserContext(), fh.Filename, file)
		file.Close()
		if err != nil {
			if errors.Is(err, services.ErrUploaderNotConfigured) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "image upload is not configured")
			}
			log.Printf("[Upload] %s failed: %v", fh.Filename, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "image upload failed",
				"images":  urls,
			})
		}
		urls = append(urls, url)
	}

	record := &models.ImageUpload{Images: pq.StringArray(urls)}
	if err := h.images.Create(c.UserContext(), record); err != nil {
		return internalError(c, "Upload", err, fiber.Map{"success": false, "message": genericFailure})
	}

	return c.JSON(urls)
}

// DeleteImage removes the CDN asset referenced by the img query parameter.
func (h *UploadHandler) DeleteImage(c *fiber.Ctx) error {
	img := c.Query("img")
	if img == "" {
		return fiber.NewError(fiber.StatusBadRequest, "img is required")
	}

	publicID := services.PublicIDFromURL(img)
	if publicID == "" || publicID == "/" || publicID == "." {
		return fiber.NewError(fiber.StatusBadRequest, "img is invalid")
	}

	result, err := h.uploader.Destroy(c.UserContext(), publicID)
	if err != nil {
		if errors.Is(err, services.ErrUploaderNotConfigured) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "image upload is not configured")
		}
		return internalError(c, "Upload", err, fiber.Map{"success": false, "message": genericFailure})
	}

	return c.JSON(fiber.Map{"result": result})
}
