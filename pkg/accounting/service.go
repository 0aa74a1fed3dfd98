// Package accounting combines meter records with inverter readings into
// instantaneous and lifetime net usage.
package accounting

import (
	"github.com/NotCoffee418/energy_bridge/pkg/esmutils"
	"github.com/NotCoffee418/energy_bridge/pkg/telegram"
)

// OBIS codes that feed the usage figures.
const (
	CodeImport           = "1.7.0"
	CodeExport           = "2.7.0"
	CodeImportedLifetime = "1.8.0"
	CodeExportedLifetime = "2.8.0"
)

// FieldValue is a telegram record with its parsed value.
type FieldValue struct {
	Code  string
	Unit  string
	Value float64
}

// Usage holds every figure of one accounting pass, in W and Wh.
type Usage struct {
	Import           int64
	Export           int64
	ImportedLifetime int64
	ExportedLifetime int64

	Production         int64
	ProductionLifetime int64

	Usage         int64
	LifetimeUsage int64

	// Parsed telegram records in telegram order, repeats included.
	Values []FieldValue
}

// Compute derives usage from the telegram records and the inverter readings.
// A record whose value is not a decimal number aborts the pass with
// telegram.ErrNumericParse.
func Compute(fields []telegram.TaggedField, production, productionLifetime int64) (Usage, error) {
	u := Usage{
		Production:         production,
		ProductionLifetime: productionLifetime,
		Values:             make([]FieldValue, 0, len(fields)),
	}

	for _, f := range fields {
		v, err := f.Float()
		if err != nil {
			return Usage{}, err
		}
		u.Values = append(u.Values, FieldValue{Code: f.Code, Unit: f.Unit, Value: v})

		// Last occurrence wins.
		switch f.Code {
		case CodeImport:
			u.Import = esmutils.KwToW(v)
		case CodeExport:
			u.Export = esmutils.KwToW(v)
		case CodeImportedLifetime:
			u.ImportedLifetime = esmutils.KwToW(v)
		case CodeExportedLifetime:
			u.ExportedLifetime = esmutils.KwToW(v)
		}
	}

	u.Usage = NetUsage(u.Import, u.Export, u.Production)
	u.LifetimeUsage = u.ProductionLifetime + u.ImportedLifetime - u.ExportedLifetime
	return u, nil
}

// NetUsage resolves the instantaneous consumption. The order of the cases
// matters: a meter reporting import and export at once takes the first branch.
func NetUsage(imp, exp, production int64) int64 {
	switch {
	case imp > 0 && exp > 0:
		return production + imp - exp
	case imp > 0:
		return imp + production
	default:
		return production - exp
	}
}
