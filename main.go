package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	modelPath     = flag.String("model", "models/garbage_classifier.tflite", "path to model file (.tflite or .onnx)")
	labelPath     = flag.String("label", "models/class_labels.json", "path to label file (.json array or one label per line)")
	materialsPath = flag.String("materials", "", "optional YAML file overriding disposal advice")
	staticDir     = flag.String("static", "./static", "directory of the web frontend")
	listen        = flag.String("listen", ":"+getEnv("PORT", "8000"), "listen address")
	decoder       = flag.String("decoder", "opencv", "image decoder: opencv or native")
	postproc      = flag.String("postproc", "auto", "output postprocessing: auto, softmax or none")
	normMode      = flag.String("norm", "unit", "float input range: unit [0,1] or signed [-1,1]")
	threads       = flag.Int("threads", 4, "interpreter threads")
	useEdgeTPU    = flag.Bool("edgetpu", false, "use the first Edge TPU device when available")
	onnxLib       = flag.String("onnxlib", os.Getenv("ONNXRUNTIME_LIB"), "path to the onnxruntime shared library")
	topK          = flag.Int("topk", 3, "number of ranked predictions returned")
	maxUpload     = flag.Int64("maxupload", 10<<20, "maximum upload size in bytes")
	debug         = flag.Bool("debug", false, "run gin in debug mode")
)

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func main() {
	flag.Parse()

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}

	labels, err := loadLabels(*labelPath)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Class labels loaded: %d classes %v", len(labels), labels)

	m, err := loadMaterials(*materialsPath)
	if err != nil {
		log.Fatal(err)
	}

	pre, err := newPreprocessor(*decoder)
	if err != nil {
		log.Fatal(err)
	}
	post, err := newPostProcessing(*postproc)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Loading model from: %s", *modelPath)
	backend, err := newBackend(modelConfig{
		Path:      *modelPath,
		Threads:   *threads,
		EdgeTPU:   *useEdgeTPU,
		OnnxLib:   *onnxLib,
		Normalize: *normMode,
	})
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	classifier := NewClassifier(backend, pre, post, labels, *topK)
	defer classifier.Close()

	srv := &http.Server{
		Addr:    *listen,
		Handler: newRouter(NewHandler(classifier, m, *maxUpload), *staticDir),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", *listen)
		log.Println("Endpoints:")
		log.Println("  GET  /         - status")
		log.Println("  GET  /health   - health check")
		log.Println("  GET  /classes  - class labels")
		log.Println("  POST /predict  - classify an uploaded image (field 'file')")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}
