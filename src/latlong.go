package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Maidenhead locators, and how far away they are.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const R_KM = 6371

const MH_MIN_PAIR = 1
const MH_MAX_PAIR = 6
const MH_UNITS = (18 * 10 * 24 * 10 * 24 * 10 * 2)

type mhPair struct {
	position string
	minCh    byte
	maxCh    byte
	value    int
}

var mhPairs = []mhPair{
	{"first", 'A', 'R', 10 * 24 * 10 * 24 * 10 * 2},
	{"second", '0', '9', 24 * 10 * 24 * 10 * 2},
	{"third", 'A', 'X', 10 * 24 * 10 * 2},
	{"fourth", '0', '9', 24 * 10 * 2},
	{"fifth", 'A', 'X', 10 * 2},
	{"sixth", '0', '9', 2},
} // Even so we can get center of square.

/*------------------------------------------------------------------
 *
 * Function:	GridToLatLng
 *
 * Purpose:	Convert Maidenhead locator to latitude and longitude.
 *
 * Inputs:	maidenhead	- 2, 4, 6, 8, 10, or 12 character grid square locator.
 *
 * Returns:	Centre of the square.
 *
 *------------------------------------------------------------------*/

func GridToLatLng(maidenhead string) (s2.LatLng, error) {
	var np = len(maidenhead) / 2 // Number of pairs of characters.

	if len(maidenhead)%2 != 0 || np < MH_MIN_PAIR || np > MH_MAX_PAIR {
		return s2.LatLng{}, fmt.Errorf("maidenhead locator %q must be from 1 to %d pairs of characters", maidenhead, MH_MAX_PAIR)
	}

	var mh = strings.ToUpper(maidenhead)

	var ilat, ilon int
	for n := 0; n < np; n++ {
		var p = mhPairs[n]
		if mh[2*n] < p.minCh || mh[2*n] > p.maxCh || mh[2*n+1] < p.minCh || mh[2*n+1] > p.maxCh {
			return s2.LatLng{}, fmt.Errorf("the %s pair of characters in maidenhead locator %q must be in range of %c thru %c",
				p.position, maidenhead, p.minCh, p.maxCh)
		}

		ilon += int(mh[2*n]-p.minCh) * p.value
		ilat += int(mh[2*n+1]-p.minCh) * p.value

		if n == np-1 { // If last pair, take center of square.
			ilon += p.value / 2
			ilat += p.value / 2
		}
	}

	var dlat = float64(ilat)/MH_UNITS*180. - 90.
	var dlon = float64(ilon)/MH_UNITS*360. - 180.

	return s2.LatLngFromDegrees(dlat, dlon), nil
}

// IsGrid4 reports whether s looks like a 4 character locator, e.g. FN20.
// "RR73" is a sign-off that happens to be a valid locator too.
func IsGrid4(s string) bool {
	if len(s) != 4 || s == "RR73" {
		return false
	}

	return s[0] >= 'A' && s[0] <= 'R' && s[1] >= 'A' && s[1] <= 'R' &&
		s[2] >= '0' && s[2] <= '9' && s[3] >= '0' && s[3] <= '9'
}

// DistanceKm is the great circle distance.
func DistanceKm(from, to s2.LatLng) float64 {
	return from.Distance(to).Radians() * R_KM
}

// BearingDeg is the initial bearing from one point to another, 0 - 360.
func BearingDeg(from, to s2.LatLng) float64 {
	var lat1, lat2 = from.Lat.Radians(), to.Lat.Radians()
	var dlon = (to.Lng - from.Lng).Radians()

	var b = s1.Angle(math.Atan2(math.Sin(dlon)*math.Cos(lat2),
		math.Cos(lat1)*math.Sin(lat2)-math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)))

	var deg = b.Degrees()
	if deg < 0 {
		deg += 360
	}

	return deg
}
