// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gorse-io/restaurant-recommender/base"
	"github.com/gorse-io/restaurant-recommender/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"modernc.org/strutil"
)

const (
	ColumnUserId         = "UserId"
	ColumnRestaurantName = "RestaurantName"
	ColumnTotalRating    = "TotalRating"

	maxLineSize = 1024 * 1024
)

// LoadTSV loads ratings from a tab-separated file with a header row.
func LoadTSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	dataset, err := ReadTSV(file)
	if err != nil {
		return nil, errors.Annotate(err, path)
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_ratings", dataset.Count()),
		zap.Int("n_users", dataset.CountUsers()),
		zap.Int("n_restaurants", dataset.CountItems()))
	return dataset, nil
}

// ReadTSV reads ratings from a tab-separated stream and builds a dataset.
func ReadTSV(r io.Reader) (*Dataset, error) {
	ratings, err := ReadRatings(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewDataset(ratings), nil
}

// ReadRatings reads ratings from a tab-separated stream. Columns are located by the header row, so
// their order does not matter and extra columns are ignored. Blank lines are skipped. Any other
// malformed row is a ParseError.
func ReadRatings(r io.Reader) ([]Rating, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	// identifiers repeat a lot in rating files
	pool := strutil.NewPool()
	var (
		lineNumber int
		columns    *header
		ratings    []Rating
	)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if columns == nil {
			var err error
			if columns, err = parseHeader(lineNumber, line); err != nil {
				return nil, errors.Trace(err)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rating, err := columns.parse(lineNumber, line)
		if err != nil {
			return nil, errors.Trace(err)
		}
		rating.UserId = pool.Align(rating.UserId)
		rating.RestaurantName = pool.Align(rating.RestaurantName)
		ratings = append(ratings, rating)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, errors.Trace(&base.ParseError{Line: lineNumber + 1, Reason: "line too long"})
		}
		return nil, errors.Trace(err)
	}
	if columns == nil {
		return nil, errors.Trace(&base.ParseError{Line: 1, Reason: "missing header"})
	}
	return ratings, nil
}

type header struct {
	userId         int
	restaurantName int
	totalRating    int
	width          int
}

func parseHeader(lineNumber int, line string) (*header, error) {
	h := &header{userId: -1, restaurantName: -1, totalRating: -1}
	for i, field := range strings.Split(line, "\t") {
		switch {
		case strings.EqualFold(strings.TrimSpace(field), ColumnUserId):
			h.userId = i
		case strings.EqualFold(strings.TrimSpace(field), ColumnRestaurantName):
			h.restaurantName = i
		case strings.EqualFold(strings.TrimSpace(field), ColumnTotalRating):
			h.totalRating = i
		}
	}
	var missing []string
	if h.userId < 0 {
		missing = append(missing, ColumnUserId)
	}
	if h.restaurantName < 0 {
		missing = append(missing, ColumnRestaurantName)
	}
	if h.totalRating < 0 {
		missing = append(missing, ColumnTotalRating)
	}
	if len(missing) > 0 {
		return nil, &base.ParseError{
			Line:   lineNumber,
			Text:   line,
			Reason: fmt.Sprintf("missing columns %s in header", strings.Join(missing, ", ")),
		}
	}
	h.width = max(h.userId, h.restaurantName, h.totalRating) + 1
	return h, nil
}

func (h *header) parse(lineNumber int, line string) (Rating, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < h.width {
		return Rating{}, &base.ParseError{
			Line:   lineNumber,
			Text:   line,
			Reason: fmt.Sprintf("expect at least %d fields, got %d", h.width, len(fields)),
		}
	}
	userId := strings.TrimSpace(fields[h.userId])
	if userId == "" {
		return Rating{}, &base.ParseError{Line: lineNumber, Text: line, Reason: "empty " + ColumnUserId}
	}
	restaurantName := strings.TrimSpace(fields[h.restaurantName])
	if restaurantName == "" {
		return Rating{}, &base.ParseError{Line: lineNumber, Text: line, Reason: "empty " + ColumnRestaurantName}
	}
	totalRating, err := strconv.Atoi(strings.TrimSpace(fields[h.totalRating]))
	if err != nil {
		return Rating{}, &base.ParseError{
			Line:   lineNumber,
			Text:   line,
			Reason: fmt.Sprintf("%s %q is not an integer", ColumnTotalRating, fields[h.totalRating]),
		}
	}
	return Rating{UserId: userId, RestaurantName: restaurantName, TotalRating: totalRating}, nil
}

// WriteTSV writes ratings in the format accepted by ReadTSV.
func WriteTSV(w io.Writer, ratings []Rating) error {
	writer := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(writer, "%s\t%s\t%s\n", ColumnUserId, ColumnRestaurantName, ColumnTotalRating); err != nil {
		return errors.Trace(err)
	}
	for _, r := range ratings {
		if strings.ContainsAny(r.UserId, "\t\n") || strings.ContainsAny(r.RestaurantName, "\t\n") {
			return errors.NotValidf("rating (%q, %q) contains tab or newline", r.UserId, r.RestaurantName)
		}
		if _, err := fmt.Fprintf(writer, "%s\t%s\t%d\n", r.UserId, r.RestaurantName, r.TotalRating); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(writer.Flush())
}
