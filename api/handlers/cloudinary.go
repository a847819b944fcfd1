package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// CloudinaryHandler handles Cloudinary related requests
type CloudinaryHandler struct{}

// GenerateSignature generates a signature for Cloudinary uploads
func (c CloudinaryHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	// Create the signature
	h := hmac.New(sha1.New, []byte(apiSecret))
	h.Write([]byte("timestamp=" + timestamp + "&upload_preset=" + uploadPreset))
	signature := hex.EncodeToString(h.Sum(nil))

	// Respond with the timestamp and signature
	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// destroyCloudinaryImage removes a hosted vehicle image. Failures are logged
// only, an orphaned asset is not worth failing the request over.
func destroyCloudinaryImage(imageURL string) {
	publicID := cloudinaryPublicID(imageURL)
	if publicID == "" {
		return
	}

	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		zap.S().Errorw("failed to init cloudinary client", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		zap.S().Errorw("failed to destroy cloudinary asset", "error", err, "publicId", publicID)
	}
}

// cloudinaryPublicID extracts the public ID from a cloudinary delivery URL,
// e.g. .../image/upload/v123/fleetstar/abc.jpg -> fleetstar/abc
func cloudinaryPublicID(imageURL string) string {
	idx := strings.Index(imageURL, "/upload/")
	if idx == -1 {
		return ""
	}
	path := imageURL[idx+len("/upload/"):]
	// strip the version segment
	if strings.HasPrefix(path, "v") {
		if slash := strings.Index(path, "/"); slash != -1 {
			if _, err := strconv.Atoi(path[1:slash]); err == nil {
				path = path[slash+1:]
			}
		}
	}
	// strip the file extension
	if dot := strings.LastIndex(path, "."); dot != -1 {
		path = path[:dot]
	}
	return path
}
