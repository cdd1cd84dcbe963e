package dicom

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawLabel burns text into a 16-bit frame, centred and scaled to about a
// third of the frame width. Glyph pixels are set to high and surrounded by
// an outline set to low so the label reads on any background.
func drawLabel(pixels []uint16, width, height int, text string, low, high uint16) {
	if text == "" || width <= 0 || height <= 0 {
		return
	}
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Height

	glyphs := image.NewGray(image.Rect(0, 0, textWidth, textHeight))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	scale := float64(width) * 0.3 / float64(textWidth)
	if scale < 1 {
		scale = 1
	}
	scaledWidth := int(float64(textWidth) * scale)
	scaledHeight := int(float64(textHeight) * scale)
	scaled := image.NewGray(image.Rect(0, 0, scaledWidth, scaledHeight))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), glyphs, glyphs.Bounds(), xdraw.Src, nil)

	originX := (width - scaledWidth) / 2
	originY := (height - scaledHeight) / 2
	outline := scaledHeight / 10
	if outline < 1 {
		outline = 1
	}

	set := func(x, y int, v uint16) {
		if x >= 0 && x < width && y >= 0 && y < height {
			pixels[y*width+x] = v
		}
	}
	ink := func(sx, sy int) bool { return scaled.GrayAt(sx, sy).Y > 127 }

	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			if !ink(sx, sy) {
				continue
			}
			for dy := -outline; dy <= outline; dy++ {
				for dx := -outline; dx <= outline; dx++ {
					set(originX+sx+dx, originY+sy+dy, low)
				}
			}
		}
	}
	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			if ink(sx, sy) {
				set(originX+sx, originY+sy, high)
			}
		}
	}
}
