package quant

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// IsNumeric reports whether token parses as a float64.
func IsNumeric(token string) bool {
	_, err := strconv.ParseFloat(token, 64)
	return err == nil
}

// parsePair returns the first two fields of line as numbers. ok is false when
// the line has fewer than two fields or either field is not numeric.
func parsePair(line string) (x float64, y float64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !IsNumeric(fields[0]) || !IsNumeric(fields[1]) {
		return 0, 0, false
	}
	x, _ = strconv.ParseFloat(fields[0], 64)
	y, _ = strconv.ParseFloat(fields[1], 64)
	return x, y, true
}

// ParseLines reads (x, y) pairs from lines until the first line that does not
// start with two numeric fields. Lines after that one are ignored even when
// they are well formed.
func ParseLines(lines []string, layout Layout) NumericTable {
	xs := []float64{}
	ys := []float64{}
	for ii, line := range lines {
		x, y, ok := parsePair(line)
		if !ok {
			glog.V(1).Infof("Stopped parsing at line %d of %d: %q",
				ii+1, len(lines), line)
			break
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return NumericTable{xs: xs, ys: ys, layout: layout}
}

// ParseReader applies the ParseLines policy to text read from r. Lines have
// no length limit. Only read errors are returned. r is not closed.
func ParseReader(r io.Reader, layout Layout) (NumericTable, error) {
	lines := []string{}
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return NumericTable{}, err
		}
	}
	return ParseLines(lines, layout), nil
}

// ReadTableFile parses the file at path.
func ReadTableFile(path string, layout Layout) (NumericTable, error) {
	file, err := os.Open(path)
	if err != nil {
		glog.Errorf("Opening %s failed with error=%s", path, err)
		return NumericTable{}, err
	}
	defer file.Close()

	table, err := ParseReader(file, layout)
	if err != nil {
		glog.Errorf("Reading %s failed with error=%s", path, err)
		return NumericTable{}, err
	}
	glog.Infof("Read %d points from %s", table.Len(), path)
	return table, nil
}
