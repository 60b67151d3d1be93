package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/cashier-go/cfsign/echo"
)

func main() {
	lambda.Start(echo.Handler)
}
