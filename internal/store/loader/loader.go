// Package loader registers the built-in store drivers.
package loader

import (
	_ "github.com/ezeehealth/clinicportal-go/internal/store/memory"
	_ "github.com/ezeehealth/clinicportal-go/internal/store/sqlite"
)
