package p4

import (
	"strconv"
	"strings"

	"github.com/jwiseman/r4/internal/models"
)

// parseFileLine parses the common output shape of p4 files and p4 opened:
//
//	//depot/path#rev - action ...
func parseFileLine(line string) (models.OpenedFile, bool) {
	if !strings.HasPrefix(line, "//") {
		return models.OpenedFile{}, false
	}
	sep := strings.Index(line, " - ")
	if sep < 0 {
		return models.OpenedFile{}, false
	}

	spec := line[:sep]
	rest := strings.TrimSpace(line[sep+3:])

	hash := strings.LastIndex(spec, "#")
	if hash < 0 {
		return models.OpenedFile{}, false
	}
	rev, err := strconv.Atoi(spec[hash+1:])
	if err != nil {
		return models.OpenedFile{}, false
	}

	action := rest
	if space := strings.IndexByte(rest, ' '); space >= 0 {
		action = rest[:space]
	}

	return models.OpenedFile{
		DepotPath: spec[:hash],
		Rev:       rev,
		Action:    action,
	}, true
}

func parseFilesOutput(out string) []models.OpenedFile {
	var files []models.OpenedFile
	for _, line := range splitLines(out) {
		f, ok := parseFileLine(line)
		if !ok {
			continue
		}
		files = append(files, f)
	}
	return files
}

// parseHaveLine parses p4 have output:
//
//	//depot/path#rev - /abs/local/path
func parseHaveLine(line string) (models.DepotFile, string, bool) {
	if !strings.HasPrefix(line, "//") {
		return models.DepotFile{}, "", false
	}
	sep := strings.Index(line, " - ")
	if sep < 0 {
		return models.DepotFile{}, "", false
	}

	spec := line[:sep]
	local := strings.TrimSpace(line[sep+3:])

	hash := strings.LastIndex(spec, "#")
	if hash < 0 {
		return models.DepotFile{}, "", false
	}
	rev, err := strconv.Atoi(spec[hash+1:])
	if err != nil {
		return models.DepotFile{}, "", false
	}

	return models.DepotFile{Path: spec[:hash], Rev: rev}, local, true
}

// parseWhereLine parses p4 where output:
//
//	//depot/path //client/path /abs/local/path
//
// Lines starting with "-" mark exclusions in the client view.
func parseWhereLine(line string) (depot, local string, ok bool) {
	if strings.HasPrefix(line, "-") {
		return "", "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", "", false
	}
	// Local paths may contain spaces; everything past the client path
	// belongs to the local path.
	return fields[0], strings.Join(fields[2:], " "), true
}
