package recon

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/schema"
)

// ParseIDList splits comma-separated input and keeps only tokens that
// are entirely digits; everything else is dropped without complaint.
func ParseIDList(input string) []string {
	var ids []string
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" || !isDigits(token) {
			continue
		}
		ids = append(ids, token)
	}
	return ids
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DeleteByIDs issues one DELETE per parsed id. Each delete stands
// alone; a failure does not stop the rest.
func DeleteByIDs(ctx context.Context, api *beeforce.Client, sch *schema.EntitySchema, input string) *Batch {
	batch := &Batch{ID: uuid.NewString(), Module: sch.Slug}
	for _, id := range ParseIDList(input) {
		result := schema.Result{Name: id, Action: schema.ActionDelete}
		resp, err := api.Delete(ctx, sch.BasePath+"/"+id)
		switch {
		case err != nil:
			result.Status = schema.StatusFailed
			result.Message = networkMessage(err)
		case resp.StatusCode == 200 || resp.StatusCode == 204:
			result.HTTPStatus = resp.StatusCode
			result.Status = schema.StatusSuccess
		default:
			result.HTTPStatus = resp.StatusCode
			result.Status = schema.StatusFailed
			result.Message = resp.Text()
		}
		batch.Results = append(batch.Results, result)
	}
	return batch
}
