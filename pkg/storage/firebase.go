package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"

	cloudstorage "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// FirebaseStorage implements ImageStorage on a Firebase Storage bucket.
type FirebaseStorage struct {
	bucket     *cloudstorage.BucketHandle
	bucketName string
}

// NewFirebaseStorage initializes the Firebase app and returns a storage
// client bound to the configured bucket.
func NewFirebaseStorage(ctx context.Context, credentialsPath, bucketName string) (*FirebaseStorage, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	// Check if the credentials file exists
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucketName}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := firebaseApp.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase storage client: %w", err)
	}

	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error getting default storage bucket: %w", err)
	}

	log.Println("Firebase app and storage bucket initialized successfully!")
	return &FirebaseStorage{bucket: bucket, bucketName: bucketName}, nil
}

// Upload writes the blob under a generated object name in folder and
// returns its tokenized download URL plus the object name as public ID.
func (s *FirebaseStorage) Upload(ctx context.Context, r io.Reader, folder string) (*StoredImage, error) {
	objectName := folder + "/" + uuid.NewString()
	token := uuid.NewString()

	w := s.bucket.Object(objectName).NewWriter(ctx)
	w.ObjectAttrs.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return nil, fmt.Errorf("error writing object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("error finalizing object %s: %w", objectName, err)
	}

	downloadURL := fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		s.bucketName, url.PathEscape(objectName), token)

	return &StoredImage{URL: downloadURL, PublicID: objectName}, nil
}

// Delete removes the object with the given public ID from the bucket.
func (s *FirebaseStorage) Delete(ctx context.Context, publicID string) error {
	return s.bucket.Object(publicID).Delete(ctx)
}
