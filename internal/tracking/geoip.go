package tracking

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Location is the best-effort origin of a click
type Location struct {
	CountryCode string
	City        string
}

// GeoLocator resolves an IP address to a location. ok is false when nothing is known.
type GeoLocator interface {
	Lookup(ip string) (loc Location, ok bool)
}

// GeoIPLocator reads a MaxMind City database
type GeoIPLocator struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens the database at path
func OpenGeoIP(path string) (*GeoIPLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}

	log.Info().
		Str("path", path).
		Msg("Loaded GeoIP database")
	return &GeoIPLocator{reader: reader}, nil
}

func (g *GeoIPLocator) Lookup(ipAddr string) (Location, bool) {
	ip := net.ParseIP(ipAddr)
	if ip == nil {
		return Location{}, false
	}

	record, err := g.reader.City(ip)
	if err != nil {
		log.Warn().
			Err(err).
			Str("ip", ipAddr).
			Msg("GeoIP lookup failed")
		return Location{}, false
	}

	loc := Location{
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
	return loc, loc.CountryCode != "" || loc.City != ""
}

// Close releases the database
func (g *GeoIPLocator) Close() error {
	return g.reader.Close()
}
