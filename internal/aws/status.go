package aws

import (
	"net/http"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// responseStatus digs the raw HTTP status out of an SDK result. Outputs built
// by fakes carry no raw response and count as 200.
func responseStatus(md middleware.Metadata) int {
	if raw, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response); ok && raw != nil && raw.Response != nil {
		return raw.StatusCode
	}
	return http.StatusOK
}
