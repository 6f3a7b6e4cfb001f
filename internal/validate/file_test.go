package validate

import (
	"errors"
	"testing"
)

func TestMIMEType(t *testing.T) {
	got, err := MIMEType("  Image/JPEG ", AllowedProofTypes)
	if err != nil {
		t.Fatalf("MIMEType: %v", err)
	}
	if got != MIMEImageJPEG {
		t.Errorf("got %q, want %q", got, MIMEImageJPEG)
	}

	if _, err := MIMEType("", AllowedProofTypes); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty type error = %v", err)
	}
	if _, err := MIMEType("text/html", AllowedProofTypes); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("disallowed type error = %v", err)
	}
}

func TestFileSize(t *testing.T) {
	constraints := FileConstraints{MinSizeBytes: 100, MaxSizeBytes: 1000}

	if err := FileSize(500, constraints); err != nil {
		t.Errorf("in-range size: %v", err)
	}
	if err := FileSize(50, constraints); !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("small size error = %v", err)
	}
	if err := FileSize(1001, constraints); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("large size error = %v", err)
	}
	if err := FileSize(0, constraints); err == nil {
		t.Error("zero size: expected error")
	}
	if err := FileSize(-1, constraints); err == nil {
		t.Error("negative size: expected error")
	}
}

func TestProofFile(t *testing.T) {
	if _, err := ProofFile(MIMEAppPDF, 2*1024*1024); err != nil {
		t.Errorf("pdf proof: %v", err)
	}
	if _, err := ProofFile(MIMEImagePNG, 10*1024*1024); err != nil {
		t.Errorf("proof at exact limit: %v", err)
	}
	if _, err := ProofFile(MIMEImagePNG, 10*1024*1024+1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized proof error = %v", err)
	}
	if _, err := ProofFile(MIMEVideoMP4, 1024); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("video as proof error = %v", err)
	}
}

func TestPosterImage(t *testing.T) {
	if _, err := PosterImage(MIMEImageWebP, 512*1024); err != nil {
		t.Errorf("webp poster: %v", err)
	}
	if _, err := PosterImage(MIMEAppPDF, 1024); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("pdf as poster error = %v", err)
	}
}

func TestMovieFile(t *testing.T) {
	if _, err := MovieFile(MIMEVideoMP4, 4*1024*1024*1024); err != nil {
		t.Errorf("4GB mp4: %v", err)
	}
	if _, err := MovieFile(MIMEVideoWebM, 5*1024*1024*1024+1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized movie error = %v", err)
	}
	if _, err := MovieFile(MIMEImageJPEG, 1024); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("jpeg as movie error = %v", err)
	}
}
