// Package chart renders a query's count series as a PNG line chart or as text.
package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/guptarohit/asciigraph"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNotEnoughPoints is returned when a series has fewer than two points.
var ErrNotEnoughPoints = errors.New("at least two points are needed to draw a chart")

const (
	DateLabelLayout = "02-01-06"

	defaultWidth  = 1000
	defaultHeight = 500
)

var (
	lineColor = drawing.ColorFromHex("00FF00")
	textColor = drawing.ColorWhite
)

// Title is the heading drawn above a query's chart.
func Title(query string) string {
	return fmt.Sprintf("Tweet Analytics for '%s'", query)
}

// RenderPNG draws the series as a lime line with dots on a transparent background.
// Y is the count, X the bucket start labelled DD-MM-YY.
func RenderPNG(query string, points []types.TimeSeriesPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughPoints
	}

	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	maxCount := 0.0
	for i, p := range points {
		xs[i] = p.Start
		ys[i] = float64(p.TweetCount)
		if ys[i] > maxCount {
			maxCount = ys[i]
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	axisStyle := gochart.Style{FontColor: textColor, StrokeColor: textColor}
	graph := gochart.Chart{
		Title:      Title(query),
		TitleStyle: gochart.Style{FontColor: textColor},
		Width:      defaultWidth,
		Height:     defaultHeight,
		Background: gochart.Style{
			FillColor: drawing.ColorTransparent,
			Padding:   gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: gochart.Style{FillColor: drawing.ColorTransparent},
		XAxis: gochart.XAxis{
			Name:           "Date",
			NameStyle:      axisStyle,
			Style:          axisStyle,
			ValueFormatter: gochart.TimeValueFormatterWithFormat(DateLabelLayout),
		},
		YAxis: gochart.YAxis{
			Name:      "Tweet Count",
			NameStyle: axisStyle,
			Style:     axisStyle,
			Range:     &gochart.ContinuousRange{Min: 0, Max: maxCount * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    query,
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
					DotColor:    lineColor,
					DotWidth:    4,
				},
			},
		},
	}

	// go-chart refuses a zero-width X range, which happens when every bucket shares a start.
	if first, last := xs[0], xs[len(xs)-1]; first.Equal(last) {
		graph.XAxis.Range = &gochart.ContinuousRange{
			Min: gochart.TimeToFloat64(first.Add(-time.Hour)),
			Max: gochart.TimeToFloat64(last.Add(time.Hour)),
		}
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart for %q: %w", query, err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 is the form the PNG takes inside JSON payloads and data URIs.
func EncodeBase64(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}

// RenderText draws the series with asciigraph for terminals and logs.
func RenderText(query string, points []types.TimeSeriesPoint, width, height int) (string, error) {
	if len(points) < 2 {
		return "", ErrNotEnoughPoints
	}
	if height <= 0 {
		height = 10
	}

	data := make([]float64, len(points))
	for i, p := range points {
		data[i] = float64(p.TweetCount)
	}

	caption := fmt.Sprintf("%s  %s .. %s", Title(query),
		points[0].Start.UTC().Format(DateLabelLayout),
		points[len(points)-1].Start.UTC().Format(DateLabelLayout))

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Caption(caption),
		asciigraph.LowerBound(0),
	}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	return asciigraph.Plot(data, opts...), nil
}
