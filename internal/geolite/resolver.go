package geolite

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

const (
	CountryFileName = "GeoLite2-Country.mmdb"
	ASNFileName     = "GeoLite2-ASN.mmdb"
)

// Resolver fills location and ASN gaps in API records from local GeoLite
// databases. Either database may be missing.
type Resolver struct {
	country *geoip2.Reader
	asn     *geoip2.Reader
	lang    string
}

// Open loads whichever of the two files exist. It returns a nil resolver
// without error when neither does.
func Open(countryPath, asnPath, lang string) (*Resolver, error) {
	country, err := openReader(countryPath)
	if err != nil {
		return nil, err
	}
	asn, err := openReader(asnPath)
	if err != nil {
		if country != nil {
			_ = country.Close()
		}
		return nil, err
	}

	if country == nil && asn == nil {
		return nil, nil
	}

	log.Info("GeoLite fallback enabled", "country", country != nil, "asn", asn != nil)
	return &Resolver{country: country, asn: asn, lang: lang}, nil
}

func openReader(path string) (*geoip2.Reader, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Debug("GeoLite database not found", "path", path)
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open %s: %w", path, err)
	}
	return reader, nil
}

// Enrich records the GeoLite country and ASN for fields the API left empty.
// The values go to record.Fallback; the API fields are not modified.
func (r *Resolver) Enrich(record *domain.ReputationRecord) {
	if r == nil || record == nil {
		return
	}
	ip := net.ParseIP(record.IP)
	if ip == nil {
		return
	}

	var country *geoip2.Country
	if r.country != nil && record.Basic.Location.Country == "" {
		if res, err := r.country.Country(ip); err == nil {
			country = res
		}
	}
	var asn *geoip2.ASN
	if r.asn != nil && record.ASN.Number == 0 {
		if res, err := r.asn.ASN(ip); err == nil {
			asn = res
		}
	}
	applyFallback(record, country, asn, r.lang)
}

func applyFallback(record *domain.ReputationRecord, country *geoip2.Country, asn *geoip2.ASN, lang string) {
	fb := domain.GeoFallback{}
	if country != nil {
		fb.Country = localizedName(country.Country.Names, lang)
		fb.CountryCode = country.Country.IsoCode
	}
	if asn != nil {
		fb.ASNNumber = int(asn.AutonomousSystemNumber)
		fb.ASNOrg = asn.AutonomousSystemOrganization
	}
	record.Fallback = fb
}

func localizedName(names map[string]string, lang string) string {
	if lang == "zh" {
		if name := names["zh-CN"]; name != "" {
			return name
		}
	}
	return names["en"]
}

func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.country != nil {
		errs = append(errs, r.country.Close())
	}
	if r.asn != nil {
		errs = append(errs, r.asn.Close())
	}
	return errors.Join(errs...)
}
