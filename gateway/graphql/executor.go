package graphql

import (
	"context"
	"log/slog"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/c360/phonebook/metric"
	"github.com/c360/phonebook/resolver"
	"github.com/c360/phonebook/store"
)

// Request is a GraphQL request body
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL response body
type Response struct {
	Data   any           `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// executor validates incoming operations against the schema and dispatches
// top-level fields to the resolver set
type executor struct {
	resolver *resolver.Resolver
	metrics  *metric.Metrics // optional
	logger   *slog.Logger
}

func newExecutor(res *resolver.Resolver, metrics *metric.Metrics, logger *slog.Logger) *executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &executor{
		resolver: res,
		metrics:  metrics,
		logger:   logger.With("component", "graphql-executor"),
	}
}

// Execute runs a query or mutation. Subscriptions are rejected here; they
// are served over the WebSocket transport.
func (e *executor) Execute(ctx context.Context, req Request) *Response {
	doc, listErr := gqlparser.LoadQuery(schema, req.Query)
	if len(listErr) > 0 {
		return &Response{Errors: listErr}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return &Response{Errors: gqlerror.List{
			gqlerror.Errorf("operation %q not found", req.OperationName),
		}}
	}

	if op.Operation == ast.Subscription {
		return &Response{Errors: gqlerror.List{
			gqlerror.Errorf("subscriptions must be initiated over the WebSocket transport"),
		}}
	}

	vars, err := validator.VariableValues(schema, op, req.Variables)
	if err != nil {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("%s", err.Error())}}
	}

	data := map[string]any{}
	var errs gqlerror.List
	nullData := false

	for _, field := range collectFields(op.SelectionSet) {
		value, fieldErr := e.resolveRootField(ctx, op.Operation, field, vars)
		if fieldErr != nil {
			errs = append(errs, shapeError(fieldErr, field.Name))
			if field.Definition != nil && field.Definition.Type.NonNull {
				// A failed non-null field nulls the whole payload
				nullData = true
				continue
			}
			data[field.Alias] = nil
			continue
		}
		data[field.Alias] = value
	}

	resp := &Response{Errors: errs}
	if !nullData {
		resp.Data = data
	}
	return resp
}

// resolveRootField dispatches one top-level field, recording metrics
func (e *executor) resolveRootField(ctx context.Context, kind ast.Operation,
	field *ast.Field, vars map[string]any) (any, error) {

	start := time.Now()
	value, err := e.dispatch(ctx, kind, field, vars)

	if e.metrics != nil {
		class := ""
		if err != nil {
			class = classLabel(err)
		}
		e.metrics.RecordOperation(field.Name, start, class)
	}

	if err != nil {
		e.logger.Debug("operation failed", "operation", field.Name, "error", err)
	}
	return value, err
}

func (e *executor) dispatch(ctx context.Context, kind ast.Operation,
	field *ast.Field, vars map[string]any) (any, error) {

	args := field.ArgumentMap(vars)

	switch kind {
	case ast.Query:
		switch field.Name {
		case "__typename":
			return "Query", nil

		case "personCount":
			return e.resolver.PersonCount(ctx)

		case "allPersons":
			filter := store.PhoneAny
			if v, ok := args["phone"].(string); ok {
				filter = store.PhoneFilter(v)
			}
			persons, err := e.resolver.AllPersons(ctx, filter)
			if err != nil {
				return nil, err
			}
			return e.personList(ctx, persons, field.SelectionSet)

		case "findPerson":
			person, err := e.resolver.FindPerson(ctx, stringArg(args, "name"))
			if err != nil || person == nil {
				return nil, err
			}
			return e.personValue(ctx, *person, field.SelectionSet)

		case "me":
			user := e.resolver.Me(ctx)
			if user == nil {
				return nil, nil
			}
			return e.userValue(ctx, user, field.SelectionSet)
		}

	case ast.Mutation:
		switch field.Name {
		case "__typename":
			return "Mutation", nil

		case "addPerson":
			person, err := e.resolver.AddPerson(ctx,
				stringArg(args, "name"), stringArg(args, "phone"),
				stringArg(args, "street"), stringArg(args, "city"))
			if err != nil {
				return nil, err
			}
			return e.personValue(ctx, *person, field.SelectionSet)

		case "editNumber":
			person, err := e.resolver.EditNumber(ctx,
				stringArg(args, "name"), stringArg(args, "phone"))
			if err != nil {
				return nil, err
			}
			return e.personValue(ctx, *person, field.SelectionSet)

		case "createUser":
			user, err := e.resolver.CreateUser(ctx,
				stringArg(args, "username"), stringArg(args, "password"))
			if err != nil {
				return nil, err
			}
			return e.userValue(ctx, user, field.SelectionSet)

		case "login":
			token, err := e.resolver.Login(ctx,
				stringArg(args, "username"), stringArg(args, "password"))
			if err != nil {
				return nil, err
			}
			return tokenValue(token, field.SelectionSet), nil

		case "addAsFriend":
			person, err := e.resolver.AddAsFriend(ctx, stringArg(args, "name"))
			if err != nil {
				return nil, err
			}
			return e.personValue(ctx, *person, field.SelectionSet)
		}
	}

	return nil, gqlerror.Errorf("unknown field %q", field.Name)
}

// personValue shapes a person according to the selection set. The address
// shape is composed here from the flat street and city fields; it is never
// stored nested.
func (e *executor) personValue(ctx context.Context, person store.Person, sel ast.SelectionSet) (map[string]any, error) {
	value := map[string]any{}
	for _, field := range collectFields(sel) {
		switch field.Name {
		case "__typename":
			value[field.Alias] = "Person"
		case "id":
			value[field.Alias] = person.ID.Hex()
		case "name":
			value[field.Alias] = person.Name
		case "phone":
			if person.Phone == "" {
				value[field.Alias] = nil
			} else {
				value[field.Alias] = person.Phone
			}
		case "address":
			value[field.Alias] = addressValue(person, field.SelectionSet)
		}
	}
	return value, nil
}

func addressValue(person store.Person, sel ast.SelectionSet) map[string]any {
	value := map[string]any{}
	for _, field := range collectFields(sel) {
		switch field.Name {
		case "__typename":
			value[field.Alias] = "Address"
		case "street":
			value[field.Alias] = person.Street
		case "city":
			value[field.Alias] = person.City
		}
	}
	return value
}

func (e *executor) personList(ctx context.Context, persons []store.Person, sel ast.SelectionSet) ([]any, error) {
	values := make([]any, 0, len(persons))
	for _, person := range persons {
		value, err := e.personValue(ctx, person, sel)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// userValue shapes a user, expanding friend references to full person
// records when the friends field is selected
func (e *executor) userValue(ctx context.Context, user *store.User, sel ast.SelectionSet) (map[string]any, error) {
	value := map[string]any{}
	for _, field := range collectFields(sel) {
		switch field.Name {
		case "__typename":
			value[field.Alias] = "User"
		case "id":
			value[field.Alias] = user.ID.Hex()
		case "username":
			value[field.Alias] = user.Username
		case "friends":
			friends, err := e.resolver.Friends(ctx, user)
			if err != nil {
				return nil, err
			}
			list, err := e.personList(ctx, friends, field.SelectionSet)
			if err != nil {
				return nil, err
			}
			value[field.Alias] = list
		}
	}
	return value, nil
}

func tokenValue(token string, sel ast.SelectionSet) map[string]any {
	value := map[string]any{}
	for _, field := range collectFields(sel) {
		switch field.Name {
		case "__typename":
			value[field.Alias] = "Token"
		case "value":
			value[field.Alias] = token
		}
	}
	return value
}

// collectFields flattens a selection set into its fields, resolving
// fragment spreads and inline fragments
func collectFields(sel ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, selection := range sel {
		switch s := selection.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, collectFields(s.SelectionSet)...)
		case *ast.FragmentSpread:
			if s.Definition != nil {
				fields = append(fields, collectFields(s.Definition.SelectionSet)...)
			}
		}
	}
	return fields
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}
