// Package domain models InfoDengue arbovirus surveillance data.
//
// # Data Sources
//
// Records come from two public APIs run by the InfoDengue / Mosqlimate
// projects. The Mosqlimate datastore serves a whole state per request in
// pages of {items, pagination}; the InfoDengue alertcity endpoint serves one
// municipality as a JSON array (occasionally a single object). Both describe
// one municipality in one epidemiological week per row.
//
// # InfoDengue Conventions
//
// Municipality identifier:
//
//	IBGE 7-digit geocode, e.g. 5208707 = Goiânia. Sent as a number or a
//	string, under municipio_geocodigo (bulk) or geocode (older payloads).
//
// Week start:
//
//	data_iniSE, the first day of the epidemiological week. Either an ISO
//	date ("2024-01-07"), an ISO datetime, or epoch milliseconds (alertcity).
//	Older payloads use data_ini_SE. SE holds the week as YYYYWW.
//
// Case counts:
//
//	casos        notified cases
//	casos_est    nowcast estimate correcting for reporting delay,
//	             bounded by casos_est_min / casos_est_max
//	casprov*     probable cases, casconf confirmed cases
//	p_inc100k    incidence per 100k inhabitants
//
// Transmission:
//
//	Rt is the effective reproduction number; values <= 0 mean it could not
//	be estimated. p_rt1 is the probability that Rt > 1. receptivo and
//	transmissao are climate receptivity and sustained-transmission flags.
//
// Alert level (nivel):
//
//	1 Green | 2 Yellow | 3 Orange | 4 Red
//	Anything else, including a missing value, is AlertUnknown and renders
//	as "Unknown" in grey.
//
// # Missing Values
//
// Every numeric column is optional and coercion never fails a row: values
// that are absent, null, non-numeric or non-finite become a missing
// [Number]. Missing values are kept distinct through aggregation so that
// means are not dragged toward zero, and are zero-filled only where data
// leaves the service ([Number.OrZero]).
package domain
