package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

type imageClassifier interface {
	Classify(ctx context.Context, data []byte) (*prediction, error)
	Labels() []string
}

type Handler struct {
	classifier imageClassifier
	materials  materials
	maxUpload  int64
}

func NewHandler(classifier imageClassifier, m materials, maxUpload int64) *Handler {
	return &Handler{classifier: classifier, materials: m, maxUpload: maxUpload}
}

type predictForm struct {
	File   *multipart.FileHeader `form:"file" binding:"required"`
	Weight float64               `form:"weight" binding:"gte=0"`
}

type predictionResponse struct {
	Status         string       `json:"status"`
	Prediction     string       `json:"prediction"`
	Confidence     float32      `json:"confidence"`
	Advice         string       `json:"advice"`
	Tip            string       `json:"tip,omitempty"`
	EstimatedValue *float64     `json:"estimated_value,omitempty"`
	AllPredictions []classScore `json:"all_predictions"`
}

func respondError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "EcoScan API is running!", "status": "success"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) Classes(c *gin.Context) {
	labels := h.classifier.Labels()
	c.JSON(http.StatusOK, gin.H{"classes": labels, "count": len(labels)})
}

func (h *Handler) Predict(c *gin.Context) {
	if h.maxUpload > 0 {
		if c.Request.ContentLength > h.maxUpload {
			respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxUpload))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	var form predictForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxUpload))
			return
		}
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	contentType := form.File.Header.Get("Content-Type")
	log.Printf("Received file: %s, content-type: %s", form.File.Filename, contentType)

	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "File must be an image")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(form.File.Filename))] {
		respondError(c, http.StatusBadRequest, "File must be an image (jpg, png, etc.)")
		return
	}

	data, err := readUpload(form.File)
	if err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("Error processing image: %v", err))
		return
	}
	log.Printf("File size: %d bytes", len(data))

	pred, err := h.classifier.Classify(c.Request.Context(), data)
	if err != nil {
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("Invalid image file: %v", decodeErr))
			return
		}
		log.Printf("Error processing image: %v", err)
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("Error processing image: %v", err))
		return
	}

	m := h.materials.lookup(pred.Class)
	resp := predictionResponse{
		Status:         "success",
		Prediction:     pred.Class,
		Confidence:     pred.Confidence,
		Advice:         m.Advice,
		Tip:            m.Tip,
		AllPredictions: pred.Top,
	}
	if form.Weight > 0 {
		value := m.Price * form.Weight
		resp.EstimatedValue = &value
	}

	log.Printf("Prediction: %s with %.2f%% confidence", pred.Class, pred.Confidence*100)
	c.JSON(http.StatusOK, resp)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
