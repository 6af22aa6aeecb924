package storage

import (
	"strings"
	"testing"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("items", "Gin & Tonic (Large)", "photo.PNG")
	if !strings.HasPrefix(key, "items/gin-and-tonic-large-") {
		t.Fatalf("key = %s", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %s, want .png suffix", key)
	}
	if ObjectKey("items", "Gin & Tonic (Large)", "photo.PNG") == key {
		t.Fatal("keys should be unique per upload")
	}
}

func TestObjectKeyFallbacks(t *testing.T) {
	key := ObjectKey("games", "!!!", "upload")
	if !strings.HasPrefix(key, "games/image-") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("key = %s", key)
	}
}

func TestCloudinaryPublicID(t *testing.T) {
	s := &CloudinaryStore{folder: "puzzle-bar"}
	if got := s.publicID("items/pils-1a2b3c4d.png"); got != "puzzle-bar/items/pils-1a2b3c4d" {
		t.Fatalf("publicID = %s", got)
	}
	s.folder = ""
	if got := s.publicID("v1.2/pils"); got != "v1.2/pils" {
		t.Fatalf("publicID = %s", got)
	}
}
