package validation

import (
	"reflect"
	"strings"
)

// jsonName hace que los mensajes usen el nombre del campo JSON (clinic_id, no ClinicID).
func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
