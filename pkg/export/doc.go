// Package export serves lookup results as downloadable files.
//
// # Supported Formats
//
// CSV Format:
//   - One row per institution, in the same order as the flat lookup
//   - Columns: unitid, instnm, stabbr, control, carnegie, webaddr, one column
//     per registered year (ascending), total
//   - Years without matching rows are written as 0
//
// JSON Format:
//   - The flat lookup payload plus export metadata
//   - Pretty-printed
//
// # HTTP API
//
// CSV endpoint: GET /api/comps.csv
// Query parameters are those of /api/comps:
//   - cip: program code (required)
//   - awlevel: integer award level (optional)
//
// Example:
//
//	curl "http://localhost:8080/api/comps.csv?cip=51.2001&awlevel=7" -o comps.csv
//
// Generic endpoint: GET /api/export?format=json|csv (default: csv)
//
// Exports are built from the cached lookup payload, so an export right after
// a lookup for the same code does not rescan any year.
//
// # Data Format
//
// The JSON export wraps the lookup payload:
//
//	{
//	  "metadata": {
//	    "exported_at": "2026-03-01T12:00:00Z",
//	    "institution_count": 1,
//	    "format": "json",
//	    "version": "1.0"
//	  },
//	  "cip": "51.2001",
//	  "awlevel": 7,
//	  "years": [2019, 2020],
//	  "results": [
//	    {
//	      "unitid": "100654",
//	      "instnm": "Acme University",
//	      "stabbr": "AL",
//	      "control": "Public",
//	      "carnegie": null,
//	      "webaddr": "",
//	      "completions": {"2019": 10, "2020": 5},
//	      "total": 15
//	    }
//	  ]
//	}
package export
