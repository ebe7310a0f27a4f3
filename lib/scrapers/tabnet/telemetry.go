package tabnet

import (
	"oncopainel-backend/lib/restyutil"
	"oncopainel-backend/lib/telemetry"
)

var tracer = telemetry.Tracer("oncopainel.lib.scrapers.tabnet")
var restyInstrumentOutput restyutil.InstrumentOutput

// routes full request/response transcripts of upstream exchanges to
// `out`, takes effect for clients created afterwards
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
