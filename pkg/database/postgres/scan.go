package postgres

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

// columnIndex 结构体的列名到字段下标映射，按类型缓存
var columnIndex sync.Map // map[reflect.Type]map[string][]int

// fieldsOf 返回列名到字段路径的映射
// 列名取 db 标签，未设置时使用字段名的 snake_case；db:"-" 的字段被忽略。
// 匿名嵌入的结构体字段展开到外层。
func fieldsOf(t reflect.Type) map[string][]int {
	if v, ok := columnIndex.Load(t); ok {
		return v.(map[string][]int)
	}

	m := make(map[string][]int)
	collectFields(t, nil, m)
	v, _ := columnIndex.LoadOrStore(t, m)
	return v.(map[string][]int)
}

func collectFields(t reflect.Type, prefix []int, m map[string][]int) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}

		path := append(append([]int(nil), prefix...), i)
		if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, path, m)
			continue
		}
		if !f.IsExported() {
			continue
		}

		name := tag
		if name == "" {
			name = toSnakeCase(f.Name)
		}
		if _, dup := m[name]; !dup {
			m[name] = path
		}
	}
}

// scanStruct 把当前行扫描到 dest 指向的结构体，未匹配的列被丢弃
func scanStruct(rows pgx.Rows, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("postgres: scan dest must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.Newf("postgres: scan dest must point to a struct, got %s", v.Kind())
	}

	fields := fieldsOf(v.Type())
	descs := rows.FieldDescriptions()
	targets := make([]any, len(descs))
	for i, fd := range descs {
		if path, ok := fields[fd.Name]; ok {
			targets[i] = v.FieldByIndex(path).Addr().Interface()
			continue
		}
		var discard any
		targets[i] = &discard
	}

	return rows.Scan(targets...)
}

// scanOne 扫描第一行
func scanOne[T any](rows pgx.Rows) (*T, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoRows
	}

	var item T
	if err := scanStruct(rows, &item); err != nil {
		return nil, err
	}
	rows.Close()
	return &item, rows.Err()
}

// scanAll 扫描全部行
func scanAll[T any](rows pgx.Rows) ([]*T, error) {
	defer rows.Close()

	items := make([]*T, 0)
	for rows.Next() {
		var item T
		if err := scanStruct(rows, &item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// scanInto 扫描到 dest：*struct 取第一行，*[]*struct 或 *[]struct 取全部行
func scanInto(rows pgx.Rows, dest any) error {
	defer rows.Close()

	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("postgres: scan dest must be a non-nil pointer")
	}

	switch elem := v.Elem(); elem.Kind() {
	case reflect.Struct:
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return ErrNoRows
		}
		if err := scanStruct(rows, dest); err != nil {
			return err
		}
		rows.Close()
		return rows.Err()

	case reflect.Slice:
		itemType := elem.Type().Elem()
		ptr := itemType.Kind() == reflect.Pointer
		if ptr {
			itemType = itemType.Elem()
		}
		if itemType.Kind() != reflect.Struct {
			return errors.Newf("postgres: slice element must be a struct, got %s", itemType.Kind())
		}

		for rows.Next() {
			item := reflect.New(itemType)
			if err := scanStruct(rows, item.Interface()); err != nil {
				return err
			}
			if ptr {
				elem.Set(reflect.Append(elem, item))
			} else {
				elem.Set(reflect.Append(elem, item.Elem()))
			}
		}
		return rows.Err()

	default:
		return errors.Newf("postgres: unsupported scan dest %s", elem.Kind())
	}
}

// toSnakeCase 驼峰转蛇形，连续大写视为一个单词：UserID -> user_id
func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
