package odata

// ServiceDocument lists the entity sets a form exposes (OData 4.0 section 11.1.1).
type ServiceDocument struct {
	Context string      `json:"@odata.context"`
	Value   []EntitySet `json:"value"`
}

// EntitySet is one entry of a service document.
type EntitySet struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// NewServiceDocument builds the service document for a form whose metadata
// document lives at metadataURL.
func NewServiceDocument(metadataURL string) ServiceDocument {
	return ServiceDocument{
		Context: metadataURL,
		Value: []EntitySet{
			{Name: RecordsSet, Kind: "EntitySet", URL: RecordsSet},
		},
	}
}

// ContextURL returns the @odata.context value for a collection response.
func ContextURL(baseURL, formID, entitySet string) string {
	return baseURL + "/forms/" + formID + ".svc/$metadata#" + entitySet
}
