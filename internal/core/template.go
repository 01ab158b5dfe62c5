package core

// TemplateFileName is the download name of the sample import file.
const TemplateFileName = "barkbook_import_template.csv"

// TemplateColumns is the documented header row, in order.
var TemplateColumns = []string{
	"name", "email", "phone", "address", "pet_name", "pet_breed", "pet_age", "pet_notes",
}

// The quoted addresses contain commas and therefore do not round-trip through
// ParseCSV; the sample is kept byte-for-byte as published.
const templateCSV = `name,email,phone,address,pet_name,pet_breed,pet_age,pet_notes
John Smith,john@example.com,555-0123,"123 Main St, City, State",Buddy,Golden Retriever,5,Friendly dog
Jane Doe,jane@example.com,555-0456,"456 Oak Ave, City, State",Mittens,Persian Cat,3,Indoor cat only
Bob Johnson,bob@example.com,555-0789,"789 Pine Rd, City, State",Max,German Shepherd,7,Needs gentle handling`

// TemplateCSV returns the sample import file. Pure and idempotent.
func TemplateCSV() []byte {
	return []byte(templateCSV)
}
