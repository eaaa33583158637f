// Package condition compiles flat rule groups into Mongo filter documents.
package condition

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Rule struct {
	Field    string
	Operator string
	Value    any
}

type Group struct {
	// Operator is AND or OR; empty means AND.
	Operator string
	Rules    []Rule
	Groups   []Group
	// Raw documents are appended verbatim.
	Raw []bson.M
}

type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

func (c *Compiler) Compile(group *Group) (bson.M, error) {
	if group == nil {
		return bson.M{}, nil
	}

	var conditions []bson.M

	for _, rule := range group.Rules {
		cond, err := c.compileRule(rule)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	for _, subGroup := range group.Groups {
		cond, err := c.Compile(&subGroup)
		if err != nil {
			return nil, err
		}
		if len(cond) > 0 {
			conditions = append(conditions, cond)
		}
	}

	for _, raw := range group.Raw {
		if len(raw) > 0 {
			conditions = append(conditions, raw)
		}
	}

	if len(conditions) == 0 {
		return bson.M{}, nil
	}

	op := "$and"
	if strings.ToUpper(group.Operator) == "OR" {
		op = "$or"
	}

	return bson.M{op: conditions}, nil
}

func (c *Compiler) compileRule(rule Rule) (bson.M, error) {
	field := rule.Field
	val := rule.Value

	switch rule.Operator {
	case "eq":
		return bson.M{field: bson.M{"$eq": val}}, nil
	case "ne":
		return bson.M{field: bson.M{"$ne": val}}, nil
	case "gt":
		return bson.M{field: bson.M{"$gt": val}}, nil
	case "lt":
		return bson.M{field: bson.M{"$lt": val}}, nil
	case "gte":
		return bson.M{field: bson.M{"$gte": val}}, nil
	case "lte":
		return bson.M{field: bson.M{"$lte": val}}, nil
	case "in":
		return bson.M{field: bson.M{"$in": val}}, nil
	case "nin":
		return bson.M{field: bson.M{"$nin": val}}, nil
	case "contains":
		if strVal, ok := val.(string); ok {
			return bson.M{field: bson.M{"$regex": primitive.Regex{Pattern: strVal, Options: "i"}}}, nil
		}
		return nil, fmt.Errorf("contains operator requires string value")
	default:
		return nil, fmt.Errorf("unknown operator: %s", rule.Operator)
	}
}
