package model

import "errors"

var ErrorNotReady = errors.New("whatsapp client is not ready")
var ErrorInvalidArgument = errors.New("invalid argument")
var ErrorNotFound = errors.New("not found")
var ErrorDeleteWindowExpired = errors.New("message is too old to be deleted (>7 minutes)")
var ErrorDeliveryFailure = errors.New("delivery failed")
