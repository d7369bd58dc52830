package render

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"webpdf/internal/tiler"
)

// heightSequence returns the readings in order and repeats the last one.
func heightSequence(readings ...int) func(context.Context) (int, error) {
	i := 0
	return func(context.Context) (int, error) {
		v := readings[i]
		if i < len(readings)-1 {
			i++
		}
		return v, nil
	}
}

func TestFitViewport_StableContent(t *testing.T) {
	var sizes []int
	content, height, clipped, err := fitViewport(context.Background(), heightSequence(2246), func(h int) error {
		sizes = append(sizes, h)
		return nil
	}, tiler.HeightLimit{Max: 10000})
	if err != nil {
		t.Fatalf("fitViewport: %v", err)
	}
	if content != 2246 || height != 2246 || clipped {
		t.Fatalf("got (%d, %d, %v), want (2246, 2246, false)", content, height, clipped)
	}
	if !reflect.DeepEqual(sizes, []int{2246 + captureHeightBuffer}) {
		t.Fatalf("viewport sizes = %v", sizes)
	}
}

func TestFitViewport_ContentGrowsAfterResize(t *testing.T) {
	var sizes []int
	content, height, clipped, err := fitViewport(context.Background(), heightSequence(2000, 3500, 3500), func(h int) error {
		sizes = append(sizes, h)
		return nil
	}, tiler.HeightLimit{Max: 10000})
	if err != nil {
		t.Fatalf("fitViewport: %v", err)
	}
	if content != 3500 || height != 3500 || clipped {
		t.Fatalf("got (%d, %d, %v), want (3500, 3500, false)", content, height, clipped)
	}
	want := []int{2000 + captureHeightBuffer, 3500 + captureHeightBuffer}
	if !reflect.DeepEqual(sizes, want) {
		t.Fatalf("viewport sizes = %v, want %v", sizes, want)
	}
}

func TestFitViewport_GrowthIsClippedByLimit(t *testing.T) {
	content, height, clipped, err := fitViewport(context.Background(), heightSequence(800, 1500), func(int) error {
		return nil
	}, tiler.HeightLimit{Max: 1000, Policy: tiler.OverflowClip})
	if err != nil {
		t.Fatalf("fitViewport: %v", err)
	}
	if content != 1500 || height != 1000 || !clipped {
		t.Fatalf("got (%d, %d, %v), want (1500, 1000, true)", content, height, clipped)
	}
}

func TestFitViewport_GrowthIsRejectedByLimit(t *testing.T) {
	_, _, _, err := fitViewport(context.Background(), heightSequence(800, 1500), func(int) error {
		return nil
	}, tiler.HeightLimit{Max: 1000, Policy: tiler.OverflowReject})
	if !errors.Is(err, tiler.ErrContentTooTall) {
		t.Fatalf("err = %v, want ErrContentTooTall", err)
	}
}

func TestFitViewport_StopsAfterMaxRounds(t *testing.T) {
	var sizes []int
	content, height, _, err := fitViewport(context.Background(), heightSequence(1000, 2000, 3000, 4000, 5000), func(h int) error {
		sizes = append(sizes, h)
		return nil
	}, tiler.HeightLimit{Max: 10000})
	if err != nil {
		t.Fatalf("fitViewport: %v", err)
	}
	if len(sizes) != maxResizeRounds {
		t.Fatalf("resized %d times, want %d", len(sizes), maxResizeRounds)
	}
	if content != 3000 || height != 3000 {
		t.Fatalf("got (%d, %d), want the height the viewport was last sized for", content, height)
	}
	if sizes[len(sizes)-1] != height+captureHeightBuffer {
		t.Fatalf("last viewport = %d, height = %d", sizes[len(sizes)-1], height)
	}
}

func TestFitViewport_ResizeError(t *testing.T) {
	boom := errors.New("boom")
	_, _, _, err := fitViewport(context.Background(), heightSequence(500), func(int) error {
		return boom
	}, tiler.HeightLimit{Max: 1000})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
