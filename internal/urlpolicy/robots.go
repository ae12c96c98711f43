package urlpolicy

import (
	"fmt"
	"net/url"

	"github.com/temoto/robotstxt"
)

// RobotsURL returns the /robots.txt location for seed's host.
func RobotsURL(seed *url.URL) string {
	return fmt.Sprintf("%s://%s/robots.txt", seed.Scheme, seed.Host)
}

// ParseRobots parses a fetched robots.txt body. A malformed body yields a
// permissive (nil, err) result rather than blocking the crawl; callers
// should treat an error here as "no robots.txt restriction applies",
// matching the teacher's map.go behavior of not letting robots.txt
// unavailability block a crawl.
func ParseRobots(body []byte) (*robotstxt.RobotsData, error) {
	return robotstxt.FromBytes(body)
}
