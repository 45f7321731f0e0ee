package rawresult

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

// csvCleaner removes the list decoration left behind by older exporters.
// Commas are decimal separators in those files.
var csvCleaner = strings.NewReplacer("[", "", "]", "", "(", "", ")", "", "'", "", ",", ".")

// ParseCSV decodes one semicolon-delimited raw-result record:
//
//	video_name;start_frame;end_frame;d0;d1;...
//
// Further non-empty lines continue the distance list of the first line.
func ParseCSV(data []byte) (sbd.RawResult, error) {
	var rec sbd.RawResult
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	first := true
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(csvCleaner.Replace(sc.Text()))
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")

		if first {
			if len(fields) < 3 {
				return rec, fmt.Errorf("%w: line %d has %d fields, want at least 3",
					sbd.ErrMalformedRecord, lineNo, len(fields))
			}
			rec.VideoName = strings.TrimSpace(fields[0])
			var err error
			if rec.StartFrame, err = parseFrame(fields[1]); err != nil {
				return rec, fmt.Errorf("%w: line %d start_frame: %v", sbd.ErrMalformedRecord, lineNo, err)
			}
			if rec.EndFrame, err = parseFrame(fields[2]); err != nil {
				return rec, fmt.Errorf("%w: line %d end_frame: %v", sbd.ErrMalformedRecord, lineNo, err)
			}
			if rec.EndFrame < rec.StartFrame {
				return rec, fmt.Errorf("%w: end_frame %d before start_frame %d",
					sbd.ErrMalformedRecord, rec.EndFrame, rec.StartFrame)
			}
			fields = fields[3:]
			first = false
		}

		// A trailing separator leaves one empty token.
		if n := len(fields); n > 0 && strings.TrimSpace(fields[n-1]) == "" {
			fields = fields[:n-1]
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return rec, fmt.Errorf("%w: line %d distance %q: %v", sbd.ErrMalformedRecord, lineNo, f, err)
			}
			rec.Distances = append(rec.Distances, v)
		}
	}
	if err := sc.Err(); err != nil {
		return rec, fmt.Errorf("%w: %v", sbd.ErrMalformedRecord, err)
	}
	if first {
		return rec, fmt.Errorf("%w: empty file", sbd.ErrMalformedRecord)
	}
	return rec, nil
}

func parseFrame(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative frame %d", n)
		}
		return n, nil
	}
	// Frame columns written from a float array come out as "12.0".
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return floatFrame(v)
}

// WriteCSV encodes rec in the single-line layout ParseCSV reads.
func WriteCSV(w io.Writer, rec sbd.RawResult) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s;%d;%d", rec.VideoName, rec.StartFrame, rec.EndFrame)
	for _, d := range rec.Distances {
		bw.WriteByte(';')
		bw.WriteString(strconv.FormatFloat(d, 'g', -1, 64))
	}
	bw.WriteByte('\n')
	return bw.Flush()
}
