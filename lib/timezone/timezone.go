package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Brasília time because the panel's reporting
// years roll over on local midnight, not on whatever timezone the
// server happens to be deployed in
func Now() time.Time {
	return time.Now().In(Location)
}
