package ffmpeg

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
)

// FrameArchiver writes sampled frames as PNG entries of a zip file.
type FrameArchiver struct{}

func NewFrameArchiver() *FrameArchiver {
	return &FrameArchiver{}
}

func (a *FrameArchiver) ArchiveFrames(ctx context.Context, frames []image.Image, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	for i, frame := range frames {
		select {
		case <-ctx.Done():
			zipWriter.Close()
			return ctx.Err()
		default:
		}

		if err := addFrameToZip(zipWriter, fmt.Sprintf("frame_%02d.png", i), frame); err != nil {
			zipWriter.Close()
			return fmt.Errorf("add frame %d to zip: %w", i, err)
		}
	}

	return zipWriter.Close()
}

func addFrameToZip(zw *zip.Writer, name string, frame image.Image) error {
	writer, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return err
	}
	return png.Encode(writer, frame)
}
