// 包 geoip：MaxMind City 库上的 IP 定位，结果交给投影换算成单元
// 约束：文件读入内存一次，geoip2 与 maxminddb 两个读取器共享同一份字节
package geoip

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/metrics"
)

var (
	// ErrUnavailable：未配置或未加载数据库
	ErrUnavailable = errors.New("geoip database unavailable")
	// ErrNoLocation：库中没有该地址的坐标
	ErrNoLocation = errors.New("no location for address")
	ErrBadIP      = errors.New("bad ip address")
)

// Place：定位结果的文字部分
type Place struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
	AccuracyKm  uint16 `json:"accuracy_km"`
	Network     string `json:"network"`
}

type Locator struct {
	city *geoip2.Reader
	raw  *maxminddb.Reader
	lang string
}

// locationRecord：只解码坐标部分
type locationRecord struct {
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Open：lang 为名称语言，空时取 en
func Open(path, lang string) (*Locator, error) {
	if path == "" {
		return nil, ErrUnavailable
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geoip %s: %w", path, err)
	}
	raw, err := maxminddb.FromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("geoip %s: %w", path, err)
	}
	city, err := geoip2.FromBytes(b)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("geoip %s: %w", path, err)
	}
	if lang == "" {
		lang = "en"
	}
	return &Locator{city: city, raw: raw, lang: lang}, nil
}

// Metadata：数据库类型、构建时间等
func (l *Locator) Metadata() (maxminddb.Metadata, error) {
	if l == nil {
		return maxminddb.Metadata{}, ErrUnavailable
	}
	return l.city.Metadata(), nil
}

// LocateString：解析文本地址后定位
func (l *Locator) LocateString(s string) (geo.LatLon, Place, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return geo.LatLon{}, Place{}, fmt.Errorf("%q: %w", s, ErrBadIP)
	}
	return l.Locate(ip)
}

// Locate：先用 maxminddb 取所在网段与坐标，再用 geoip2 取名称
func (l *Locator) Locate(ip net.IP) (geo.LatLon, Place, error) {
	if l == nil {
		return geo.LatLon{}, Place{}, ErrUnavailable
	}
	var rec locationRecord
	network, ok, err := l.raw.LookupNetwork(ip, &rec)
	if err != nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("error").Inc()
		return geo.LatLon{}, Place{}, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	if !ok || rec.Location.Latitude == nil || rec.Location.Longitude == nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("miss").Inc()
		return geo.LatLon{}, Place{}, fmt.Errorf("%s: %w", ip, ErrNoLocation)
	}
	place := Place{}
	if network != nil {
		place.Network = network.String()
	}
	if c, err := l.city.City(ip); err == nil {
		place.Country = pickName(c.Country.Names, l.lang)
		place.CountryCode = c.Country.IsoCode
		place.City = pickName(c.City.Names, l.lang)
		place.AccuracyKm = c.Location.AccuracyRadius
	}
	metrics.GeoIPLookupsTotal.WithLabelValues("hit").Inc()
	return geo.FromDegrees(*rec.Location.Latitude, *rec.Location.Longitude), place, nil
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	err := l.city.Close()
	if e := l.raw.Close(); err == nil {
		err = e
	}
	return err
}

// pickName：优先 lang，其次 en
func pickName(names map[string]string, lang string) string {
	if v, ok := names[lang]; ok {
		return v
	}
	return names["en"]
}
