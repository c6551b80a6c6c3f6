package display

import (
	"image"
	"image/color"
	"testing"
)

func TestMailboxKeepsLatestFrame(t *testing.T) {
	mb := NewMailbox(2, 2)

	if _, _, ok := mb.Take(); ok {
		t.Fatal("expected empty mailbox")
	}

	for _, c := range []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}} {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
		}
		if err := mb.Update(img); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-mb.Ready():
	default:
		t.Fatal("expected ready notification")
	}

	frame, final, ok := mb.Take()
	if !ok || final {
		t.Fatalf("expected an intermediate frame; got ok=%t final=%t", ok, final)
	}
	if got := frame.RGBAAt(1, 1); got != (color.RGBA{0, 255, 0, 255}) {
		t.Fatalf("expected the most recent frame; got %v", got)
	}
	if _, _, ok = mb.Take(); ok {
		t.Fatal("expected frame to be consumed")
	}

	if err := mb.Flush(image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	frame, final, ok = mb.Take()
	if !ok || !final {
		t.Fatal("expected the final frame")
	}
	if frame.Rect.Dx() != 2 || frame.Rect.Dy() != 2 {
		t.Fatalf("expected frame to be resampled to 2x2; got %v", frame.Rect)
	}
}
