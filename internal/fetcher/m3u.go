package fetcher

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

var (
	reTvgName = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgLogo = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reGroup   = regexp.MustCompile(`group-title="([^"]*)"`)
)

// streamSchemes are the prefixes that mark a line as a stream URL.
var streamSchemes = []string{"http://", "https://", "rtmp://", "rtsp://", "udp://", "mms://"}

const extinf = "#EXTINF"

// ParseM3U reads an M3U playlist from r and returns its channels in file order.
//
// The display name is the tvg-name attribute when present, otherwise the text after
// the last comma of the EXTINF line. A URL line closes the pending record; URL lines
// with no pending name are dropped. IDs are assigned 1, 2, ... in output order.
func ParseM3U(r io.Reader) ([]models.Channel, error) {
	var channels []models.Channel
	scanner := bufio.NewScanner(r)
	// Some EXTINF lines carry very long attribute lists.
	const maxSize = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxSize)

	var pending string // EXTINF line awaiting its URL
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(strings.ToUpper(line), extinf):
			// An EXTINF with no URL is replaced by the next one.
			pending = line
		case strings.HasPrefix(line, "#"):
			continue
		case isStreamURL(line):
			if pending == "" {
				continue
			}
			name := channelNameFromEXTINF(pending)
			if name == "" {
				pending = ""
				continue
			}
			channels = append(channels, models.Channel{
				ID:        len(channels) + 1,
				Key:       ChannelKey(line),
				Name:      name,
				URL:       line,
				Group:     matchFirst(reGroup, pending),
				Logo:      matchFirst(reTvgLogo, pending),
				MediaType: mediaTypeFromURL(line),
			})
			pending = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return channels, nil
}

// ChannelKey returns the stable identity of a stream URL.
func ChannelKey(url string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(url))
}

func isStreamURL(line string) bool {
	lower := strings.ToLower(line)
	for _, scheme := range streamSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// channelNameFromEXTINF extracts the channel name: tvg-name, else the last comma field.
func channelNameFromEXTINF(line string) string {
	if n := matchFirst(reTvgName, line); n != "" {
		return n
	}
	i := strings.LastIndex(line, ",")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+1:])
}

func mediaTypeFromURL(url string) int16 {
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	if strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".mkv") {
		return models.MediaTypeMovie
	}
	return models.MediaTypeLivestream
}
